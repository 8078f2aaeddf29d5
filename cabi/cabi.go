// Package main builds libgroovymister, the C ABI surface over the streaming
// core. Build with:
//
//	go build -buildmode=c-shared -o libgroovymister.so ./cabi
//
// The hand-maintained header lives in include/groovy_mister.h; the struct
// layouts below must stay byte-for-byte compatible with it.
package main

/*
#include <stdint.h>
#include <stddef.h>

struct gmz_conn;
typedef struct gmz_conn *gmz_conn_t;

struct gmz_input;
typedef struct gmz_input *gmz_input_t;

typedef struct {
	double pixel_clock;
	uint16_t h_active;
	uint16_t h_begin;
	uint16_t h_end;
	uint16_t h_total;
	uint16_t v_active;
	uint16_t v_begin;
	uint16_t v_end;
	uint16_t v_total;
	uint8_t interlaced;
	uint8_t _pad[6];
} gmz_modeline_t;

typedef struct {
	uint32_t frame;
	uint32_t frame_echo;
	uint16_t vcount;
	uint16_t vcount_echo;
	uint8_t vram_ready;
	uint8_t vram_end_frame;
	uint8_t vram_synced;
	uint8_t vga_frameskip;
	uint8_t vga_vblank;
	uint8_t vga_f1;
	uint8_t audio_active;
	uint8_t vram_queue;
	double avg_sync_wait_ms;
	double p95_sync_wait_ms;
	double vram_ready_rate;
	double stall_threshold_ms;
} gmz_state_t;

typedef struct {
	uint32_t frame;
	uint8_t order;
	uint16_t joy1;
	uint16_t joy2;
	int8_t joy1_x, joy1_y, joy2_x, joy2_y;
	int8_t joy1_rx, joy1_ry, joy2_rx, joy2_ry;
} gmz_joy_state_t;

typedef struct {
	uint32_t frame;
	uint8_t order;
	uint8_t keys[32];
	uint8_t mouse_buttons;
	int8_t mouse_x, mouse_y, mouse_z;
} gmz_ps2_state_t;
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/dylan/groovymister/input"
	"github.com/dylan/groovymister/protocol"
	"github.com/dylan/groovymister/stream"
	"github.com/dylan/groovymister/version"
)

// connState is what a gmz_conn_t handle points at.
type connState struct {
	conn        *stream.Connection
	hasModeline bool
	modeline    protocol.Modeline
}

func connFromHandle(h C.gmz_conn_t) *connState {
	if h == nil {
		return nil
	}
	v, ok := cgo.Handle(uintptr(unsafe.Pointer(h))).Value().(*connState)
	if !ok {
		return nil
	}
	return v
}

func inputFromHandle(h C.gmz_input_t) *input.Connection {
	if h == nil {
		return nil
	}
	v, ok := cgo.Handle(uintptr(unsafe.Pointer(h))).Value().(*input.Connection)
	if !ok {
		return nil
	}
	return v
}

func connect(host *C.char, mtu C.uint16_t, rgbMode, soundRate, soundChannels, lz4Mode C.uint8_t) C.gmz_conn_t {
	cfg := stream.Config{
		Host:          C.GoString(host),
		MTU:           int(mtu),
		RGBMode:       protocol.RGBMode(rgbMode),
		SoundRate:     protocol.SoundRate(soundRate),
		SoundChannels: protocol.SoundChannels(soundChannels),
		LZ4:           protocol.LZ4Mode(lz4Mode),
	}

	conn, err := stream.Open(nil, cfg)
	if err != nil {
		return nil
	}

	if err := conn.SendInit(); err != nil {
		conn.Close()
		return nil
	}

	h := cgo.NewHandle(&connState{conn: conn})
	return C.gmz_conn_t(unsafe.Pointer(uintptr(h)))
}

//export gmz_connect
func gmz_connect(host *C.char, mtu C.uint16_t, rgbMode, soundRate, soundChannels C.uint8_t) C.gmz_conn_t {
	return connect(host, mtu, rgbMode, soundRate, soundChannels, 0)
}

//export gmz_connect_ex
func gmz_connect_ex(host *C.char, mtu C.uint16_t, rgbMode, soundRate, soundChannels, lz4Mode C.uint8_t) C.gmz_conn_t {
	return connect(host, mtu, rgbMode, soundRate, soundChannels, lz4Mode)
}

//export gmz_disconnect
func gmz_disconnect(h C.gmz_conn_t) {
	st := connFromHandle(h)
	if st == nil {
		return
	}
	st.conn.Close()
	cgo.Handle(uintptr(unsafe.Pointer(h))).Delete()
}

//export gmz_tick
func gmz_tick(h C.gmz_conn_t) C.gmz_state_t {
	var out C.gmz_state_t

	st := connFromHandle(h)
	if st == nil {
		return out
	}

	state := st.conn.Tick()

	out.frame = C.uint32_t(state.Frame)
	out.frame_echo = C.uint32_t(state.FrameEcho)
	out.vcount = C.uint16_t(state.VCount)
	out.vcount_echo = C.uint16_t(state.VCountEcho)
	out.vram_ready = cbool(state.VRAMReady)
	out.vram_end_frame = cbool(state.VRAMEndFrame)
	out.vram_synced = cbool(state.VRAMSynced)
	out.vga_frameskip = cbool(state.VGAFrameskip)
	out.vga_vblank = cbool(state.VGAVBlank)
	out.vga_f1 = cbool(state.VGAField1)
	out.audio_active = cbool(state.AudioActive)
	out.vram_queue = cbool(state.VRAMQueue)
	out.avg_sync_wait_ms = C.double(state.AvgSyncWaitMs)
	out.p95_sync_wait_ms = C.double(state.P95SyncWaitMs)
	out.vram_ready_rate = C.double(state.VRAMReadyRate)
	out.stall_threshold_ms = C.double(state.StallThresholdMs)

	return out
}

//export gmz_set_modeline
func gmz_set_modeline(h C.gmz_conn_t, ml *C.gmz_modeline_t) C.int {
	st := connFromHandle(h)
	if st == nil || ml == nil {
		return -1
	}

	m := protocol.Modeline{
		PixelClock: float64(ml.pixel_clock),
		HActive:    uint16(ml.h_active),
		HBegin:     uint16(ml.h_begin),
		HEnd:       uint16(ml.h_end),
		HTotal:     uint16(ml.h_total),
		VActive:    uint16(ml.v_active),
		VBegin:     uint16(ml.v_begin),
		VEnd:       uint16(ml.v_end),
		VTotal:     uint16(ml.v_total),
		Interlaced: ml.interlaced != 0,
	}

	if err := st.conn.SwitchRes(m); err != nil {
		return -1
	}

	st.modeline = m
	st.hasModeline = true
	return 0
}

//export gmz_submit
func gmz_submit(h C.gmz_conn_t, data *C.uint8_t, length C.size_t, frame C.uint32_t, field C.uint8_t, vsyncLine C.uint16_t, syncWaitMs C.double) C.int {
	st := connFromHandle(h)
	if st == nil {
		return -1
	}

	var buf []byte
	if data != nil && length > 0 {
		buf = unsafe.Slice((*byte)(unsafe.Pointer(data)), int(length))
	}

	if err := st.conn.SendFrame(buf, uint32(frame), uint8(field), uint16(vsyncLine)); err != nil {
		return -1
	}

	st.conn.RecordSyncWait(float64(syncWaitMs))
	return 0
}

//export gmz_submit_audio
func gmz_submit_audio(h C.gmz_conn_t, data *C.uint8_t, length C.size_t) C.int {
	st := connFromHandle(h)
	if st == nil {
		return -1
	}

	var buf []byte
	if data != nil && length > 0 {
		buf = unsafe.Slice((*byte)(unsafe.Pointer(data)), int(length))
	}

	if err := st.conn.SendAudio(buf); err != nil {
		return -1
	}
	return 0
}

//export gmz_wait_sync
func gmz_wait_sync(h C.gmz_conn_t, timeoutMs C.int) C.int {
	st := connFromHandle(h)
	if st == nil {
		return -1
	}
	if st.conn.WaitSync(int(timeoutMs)) {
		return 0
	}
	return 1
}

//export gmz_begin_frame
func gmz_begin_frame(h C.gmz_conn_t) C.int {
	st := connFromHandle(h)
	if st == nil {
		return 1 // a missing handle is as stalled as it gets
	}

	switch st.conn.BeginFrame() {
	case stream.FrameReady:
		return 0
	case stream.FrameStalled:
		return 1
	default:
		return 2
	}
}

//export gmz_frame_time_ns
func gmz_frame_time_ns(h C.gmz_conn_t) C.int64_t {
	st := connFromHandle(h)
	if st == nil || !st.hasModeline {
		return 0
	}
	return C.int64_t(st.conn.Timing().FrameTimeNs)
}

//export gmz_raster_offset_ns
func gmz_raster_offset_ns(h C.gmz_conn_t) C.int64_t {
	st := connFromHandle(h)
	if st == nil || !st.hasModeline {
		return 0
	}
	return C.int64_t(st.conn.RasterOffsetNs())
}

//export gmz_calc_vsync
func gmz_calc_vsync(h C.gmz_conn_t, pingNs, marginNs, emulationNs, streamNs C.int64_t) C.uint16_t {
	st := connFromHandle(h)
	if st == nil || !st.hasModeline {
		return 0
	}

	ft := st.conn.Timing()
	if ft.FrameTimeNs == 0 {
		return C.uint16_t(st.modeline.VTotal / 2)
	}

	return C.uint16_t(ft.CalcVsyncLine(int64(pingNs), int64(marginNs), int64(emulationNs), int64(streamNs)))
}

var cVersion = C.CString(version.String)

//export gmz_version
func gmz_version() *C.char {
	return cVersion
}

//export gmz_version_major
func gmz_version_major() C.uint32_t {
	return version.Major
}

//export gmz_version_minor
func gmz_version_minor() C.uint32_t {
	return version.Minor
}

//export gmz_version_patch
func gmz_version_patch() C.uint32_t {
	return version.Patch
}

//export gmz_input_bind
func gmz_input_bind(host *C.char) C.gmz_input_t {
	conn, err := input.Bind(nil, C.GoString(host), 0)
	if err != nil {
		return nil
	}

	h := cgo.NewHandle(conn)
	return C.gmz_input_t(unsafe.Pointer(uintptr(h)))
}

//export gmz_input_close
func gmz_input_close(h C.gmz_input_t) {
	conn := inputFromHandle(h)
	if conn == nil {
		return
	}
	conn.Close()
	cgo.Handle(uintptr(unsafe.Pointer(h))).Delete()
}

//export gmz_input_poll
func gmz_input_poll(h C.gmz_input_t) C.int {
	conn := inputFromHandle(h)
	if conn == nil {
		return -1
	}
	if conn.Poll() {
		return 1
	}
	return 0
}

//export gmz_input_joy
func gmz_input_joy(h C.gmz_input_t, out *C.gmz_joy_state_t) C.int {
	conn := inputFromHandle(h)
	if conn == nil || out == nil {
		return -1
	}

	joy := conn.Joystick()
	out.frame = C.uint32_t(joy.Frame)
	out.order = C.uint8_t(joy.Order)
	out.joy1 = C.uint16_t(joy.Joy1)
	out.joy2 = C.uint16_t(joy.Joy2)
	out.joy1_x = C.int8_t(joy.Joy1X)
	out.joy1_y = C.int8_t(joy.Joy1Y)
	out.joy2_x = C.int8_t(joy.Joy2X)
	out.joy2_y = C.int8_t(joy.Joy2Y)
	out.joy1_rx = C.int8_t(joy.Joy1RX)
	out.joy1_ry = C.int8_t(joy.Joy1RY)
	out.joy2_rx = C.int8_t(joy.Joy2RX)
	out.joy2_ry = C.int8_t(joy.Joy2RY)
	return 0
}

//export gmz_input_ps2
func gmz_input_ps2(h C.gmz_input_t, out *C.gmz_ps2_state_t) C.int {
	conn := inputFromHandle(h)
	if conn == nil || out == nil {
		return -1
	}

	ps2 := conn.Ps2()
	out.frame = C.uint32_t(ps2.Frame)
	out.order = C.uint8_t(ps2.Order)
	for i, b := range ps2.Keys {
		out.keys[i] = C.uint8_t(b)
	}
	out.mouse_buttons = C.uint8_t(ps2.MouseButtons)
	out.mouse_x = C.int8_t(ps2.MouseX)
	out.mouse_y = C.int8_t(ps2.MouseY)
	out.mouse_z = C.int8_t(ps2.MouseZ)
	return 0
}

func cbool(b bool) C.uint8_t {
	if b {
		return 1
	}
	return 0
}

func main() {}
