// Package demux recovers audio samples and IMU readings from the framed byte
// stream sent by the sensor firmware.
//
// The stream arrives in chunks of arbitrary size with no alignment between
// chunk and record boundaries. A Demultiplexer keeps the bytes that do not
// yet form a complete record and decodes everything else on each Feed, so the
// decoded sequences are identical however the stream is split.
//
// Two framings are supported through the Format descriptor:
//
//   - typed: every record starts with a kind byte (0x01 audio, 0x02 IMU).
//     Unknown kind bytes are skipped one at a time.
//   - marker: a four byte marker (FF FE FD FC) introduces an IMU record and
//     every other byte is audio, decoded at a fixed stride.
//
// Neither framing carries a checksum. An audio value whose bytes equal the
// marker is read as an IMU introducer.
package demux
