// Package transceiver delivers encoded frames to a nooLite RF transmitter.
//
// Three drivers implement Transport:
//
//   - usb: the PC118/PC1132 USB stick (16c0:05df), driven through libusb with
//     a HID SET_REPORT control transfer per frame
//   - mqtt: publishes the frame as hex to <prefix>/frame/{channel} for a
//     transmitter plugged into another host
//   - dry_run: logs frames only
//
// The driver is chosen by transceiver.driver in config.yaml and built by New.
// USB failures are reported as ErrDeviceNotFound when the stick is absent
// and ErrTransfer otherwise.
package transceiver
