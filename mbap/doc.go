// Package mbap implements the Modbus application protocol (MBAP) envelope used by Modbus/TCP.
//
// Each frame on the wire is a 7-byte MBAP header followed by a PDU:
//
//	+----------------+-------------+--------+---------+-----------------+
//	| transaction id | protocol id | length | unit id | PDU             |
//	| 2 bytes (BE)   | 2 bytes = 0 | 2 (BE) | 1 byte  | 1..253 bytes    |
//	+----------------+-------------+--------+---------+-----------------+
//
// The length field counts the unit id and the PDU. The transaction id correlates a response
// with its request and the unit id addresses a device behind the endpoint; both are carried
// in Header and echoed verbatim in responses.
//
// The server side reads requests with Reader and writes responses with WriteResponse.
// WriteRequest and ReadResponse implement the client side of the same framing.
package mbap
