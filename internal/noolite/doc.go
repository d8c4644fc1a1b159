// Package noolite encodes nooLite RF command frames.
//
// A nooLite USB transmitter (VID 0x16c0, PID 0x05df) accepts one 8-byte
// frame per HID control transfer. The frame names an action, a payload
// format, the receiver channel (0-31) and up to three payload bytes.
// Receivers never answer, so encoding is the whole protocol.
//
// Everything here is pure: no state, no I/O.
//
//	f := noolite.SwitchOn(5, false)       // 30 02 00 00 05 00 00 00
//	f = noolite.SetBrightness(5, 50)      // 30 06 01 00 05 60 00 00
//	f, ok := noolite.SetColor(5, "1A2B3C") // 30 06 03 00 05 1a 2b 3c
package noolite
