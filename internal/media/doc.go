// Package media wraps the FFmpeg objects a transcode job is built from:
// container reader and writer, decoder, resampler and encoder.
//
// Decoder and Encoder expose FFmpeg's send/receive protocol with an explicit
// state (Idle, Running, Draining, Flushed). ErrDrain and ErrFlushed are
// control signals rather than failures: ErrDrain asks the caller to send more
// input, ErrFlushed reports that a drained codec has nothing left.
//
// Every type owns native resources and must be closed exactly once. Close is
// safe to call more than once.
package media
