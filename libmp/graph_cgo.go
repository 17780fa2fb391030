//go:build libmp && cgo

package libmp

/*
#cgo LDFLAGS: -lmp
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
#include <libmp.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Graph is a running instance of a calculator graph. A Graph processes a
// single input stream and must not be fed from several goroutines at once.
type Graph struct {
	mu     sync.Mutex
	handle *C.LibMP
}

// Open creates a graph from its text configuration and registers the output
// streams which will be polled for packets.
func Open(config, input string, outputs ...string) (*Graph, error) {
	cfg := C.CString(config)
	defer C.free(unsafe.Pointer(cfg))
	in := C.CString(input)
	defer C.free(unsafe.Pointer(in))

	h := C.LibMP_Create(cfg, in)
	if h == nil {
		return nil, fmt.Errorf("libmp: could not create the graph")
	}
	g := &Graph{handle: h}

	for _, out := range outputs {
		name := C.CString(out)
		ok := C.LibMP_AddOutputStream(h, name)
		C.free(unsafe.Pointer(name))
		if !ok {
			g.Close()
			return nil, fmt.Errorf("libmp: could not add output stream %q", out)
		}
	}
	return g, nil
}

// SetMaxQueueSize bounds the number of packets buffered on an output stream.
func (g *Graph) SetMaxQueueSize(stream string, size int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := C.CString(stream)
	defer C.free(unsafe.Pointer(name))
	if !C.LibMP_SetOutputStreamMaxQueueSize(g.handle, name, C.int(size)) {
		return fmt.Errorf("libmp: could not set the queue size of %q", stream)
	}
	return nil
}

// Start starts running the graph.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !C.LibMP_Start(g.handle) {
		return fmt.Errorf("libmp: could not start the graph")
	}
	return nil
}

// Process copies a frame into the graph input stream.
func (g *Graph) Process(pix []byte, width, height int, format ImageFormat) error {
	if err := checkFrame(pix, width, height, format); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	ok := C.LibMP_Process(g.handle,
		(*C.uint8_t)(unsafe.Pointer(&pix[0])),
		C.int(width), C.int(height), C.int(format),
	)
	if !ok {
		return fmt.Errorf("libmp: could not process the %dx%d frame", width, height)
	}
	return nil
}

// WaitUntilIdle blocks until the graph has no more pending work.
func (g *Graph) WaitUntilIdle() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !C.LibMP_WaitUntilIdle(g.handle) {
		return fmt.Errorf("libmp: wait until idle failed")
	}
	return nil
}

// QueueSize returns the number of packets waiting on an output stream.
func (g *Graph) QueueSize(stream string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := C.CString(stream)
	defer C.free(unsafe.Pointer(name))
	return int(C.LibMP_GetOutputQueueSize(g.handle, name))
}

// NextImage pops the next packet of an image stream and returns a copy of
// its pixel buffer.
func (g *Graph) NextImage(stream string) ([]byte, error) {
	pkt, err := g.packet(stream)
	if err != nil {
		return nil, err
	}
	defer C.LibMP_DeletePacket(pkt)

	size := int(C.LibMP_GetOutputImageSize(pkt))
	if size <= 0 {
		return nil, fmt.Errorf("libmp: empty image packet on %q", stream)
	}
	buf := make([]byte, size)
	if !C.LibMP_WriteOutputImage((*C.uint8_t)(unsafe.Pointer(&buf[0])), pkt) {
		return nil, fmt.Errorf("libmp: could not copy the image packet of %q", stream)
	}
	return buf, nil
}

// NextProtos pops the next packet of a stream carrying a vector of protocol
// buffer messages and returns every message serialized.
func (g *Graph) NextProtos(stream string) ([][]byte, error) {
	pkt, err := g.packet(stream)
	if err != nil {
		return nil, err
	}
	defer C.LibMP_DeletePacket(pkt)

	n := int(C.LibMP_GetProtoMsgVecSize(pkt))
	msgs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		// The message is owned by the packet.
		msg := C.LibMP_GetPacketProtoMsgAt(pkt, C.uint(i))
		if msg == nil {
			return nil, fmt.Errorf("libmp: missing message %d of %q", i, stream)
		}
		size := int(C.LibMP_GetProtoMsgByteSize(msg))
		buf := make([]byte, size)
		if size > 0 {
			if !C.LibMP_WriteProtoMsgData((*C.uint8_t)(unsafe.Pointer(&buf[0])), msg, C.int(size)) {
				return nil, fmt.Errorf("libmp: could not serialize message %d of %q", i, stream)
			}
		}
		msgs = append(msgs, buf)
	}
	return msgs, nil
}

func (g *Graph) packet(stream string) (unsafe.Pointer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := C.CString(stream)
	defer C.free(unsafe.Pointer(name))
	pkt := C.LibMP_GetOutputPacket(g.handle, name)
	if pkt == nil {
		return nil, fmt.Errorf("%w on %q", ErrNoPacket, stream)
	}
	return unsafe.Pointer(pkt), nil
}

// Close stops the graph and releases the native resources.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.handle != nil {
		C.LibMP_Delete(g.handle)
		g.handle = nil
	}
	return nil
}
