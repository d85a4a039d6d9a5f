// Package engine implements the 3D engine's command front end: a register
// file driven by method calls, with shadow-RAM record and replay, macro
// dispatch, syncpoints and semaphore writeback.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/artem8086/skyline/gmmu"
	"github.com/artem8086/skyline/gpu"
	"github.com/artem8086/skyline/maxwell"
)

// ErrMacroOverflow reports a macro RAM load past the end of the backing
// storage. The command stream is corrupt at that point, so processing
// stops.
var ErrMacroOverflow = errors.New("engine: macro ram pointer out of range")

const (
	// macroEntryCount is the number of macro start-address slots.
	macroEntryCount = 0x80

	// macroCodeWords is the capacity of the macro instruction RAM.
	macroCodeWords = 0x10000
)

// MacroInterpreter executes a macro program previously loaded into the
// engine's macro RAM. Position is the start offset in instruction words;
// arguments are the words accumulated for this invocation.
type MacroInterpreter interface {
	Execute(position uint32, arguments []uint32) error
}

// Syncpoints receives syncpoint increments as the engine retires them.
type Syncpoints interface {
	Increment(id uint32)
}

// CountingSyncpoints is a Syncpoints implementation that simply counts
// increments per syncpoint. Safe for concurrent use.
type CountingSyncpoints struct {
	mu     sync.Mutex
	counts map[uint32]uint64
}

// NewCountingSyncpoints creates an empty counter set.
func NewCountingSyncpoints() *CountingSyncpoints {
	return &CountingSyncpoints{counts: map[uint32]uint64{}}
}

// Increment adds one to the given syncpoint.
func (s *CountingSyncpoints) Increment(id uint32) {
	s.mu.Lock()
	s.counts[id]++
	s.mu.Unlock()
}

// Value returns the current count of the given syncpoint.
func (s *CountingSyncpoints) Value(id uint32) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id]
}

// Maxwell3D is the 3D engine register file and method processor. It is not
// safe for concurrent use; one channel owns one engine.
type Maxwell3D struct {
	registers [maxwell.RegisterCount]uint32
	shadow    [maxwell.RegisterCount]uint32

	macroCode      [macroCodeWords]uint32
	macroPositions [macroEntryCount]uint32
	macroIndex     int
	macroArguments []uint32

	interpreter  MacroInterpreter
	syncpoints   Syncpoints
	context      *gpu.GraphicsContext
	addressSpace gmmu.AddressSpace
	now          func() uint64
	log          io.Writer
}

// Option configures a Maxwell3D.
type Option func(*Maxwell3D)

// WithMacroInterpreter installs the macro execution backend.
func WithMacroInterpreter(mi MacroInterpreter) Option {
	return func(m *Maxwell3D) {
		m.interpreter = mi
	}
}

// WithSyncpoints installs the syncpoint sink.
func WithSyncpoints(s Syncpoints) Option {
	return func(m *Maxwell3D) {
		m.syncpoints = s
	}
}

// WithTimeSource overrides the nanosecond clock used for semaphore
// timestamps.
func WithTimeSource(now func() uint64) Option {
	return func(m *Maxwell3D) {
		m.now = now
	}
}

// WithLogWriter directs the engine's diagnostics to w.
func WithLogWriter(w io.Writer) Option {
	return func(m *Maxwell3D) {
		m.log = w
	}
}

// NewMaxwell3D creates an engine bound to a GPU, in its reset state.
func NewMaxwell3D(g *gpu.GPU, opts ...Option) *Maxwell3D {
	m := &Maxwell3D{
		macroIndex:   -1,
		syncpoints:   NewCountingSyncpoints(),
		addressSpace: g.AddressSpace(),
		now:          func() uint64 { return uint64(time.Now().UnixNano()) },
		log:          os.Stderr,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.context = gpu.NewGraphicsContext(g, gpu.WithContextLogWriter(m.log))
	m.Reset()
	return m
}

// Context returns the graphics context the engine drives.
func (m *Maxwell3D) Context() *gpu.GraphicsContext {
	return m.context
}

// Register returns the live value of a register.
func (m *Maxwell3D) Register(offset uint32) uint32 {
	return m.registers[offset]
}

// ShadowRegister returns the shadow copy of a register.
func (m *Maxwell3D) ShadowRegister(offset uint32) uint32 {
	return m.shadow[offset]
}

// MacroPosition returns the start offset of a macro slot.
func (m *Maxwell3D) MacroPosition(index int) uint32 {
	return m.macroPositions[index]
}

// MacroCode returns the engine's macro instruction RAM.
func (m *Maxwell3D) MacroCode() []uint32 {
	return m.macroCode[:]
}

// Reset restores the power-on state of the engine and its context.
func (m *Maxwell3D) Reset() {
	m.registers = [maxwell.RegisterCount]uint32{}
	m.shadow = [maxwell.RegisterCount]uint32{}
	m.macroCode = [macroCodeWords]uint32{}
	m.macroPositions = [macroEntryCount]uint32{}
	m.macroIndex = -1
	m.macroArguments = m.macroArguments[:0]
	m.context.Reset()
}

func (m *Maxwell3D) logf(format string, args ...any) {
	fmt.Fprintf(m.log, "maxwell3d: "+format+"\n", args...)
}

// CallMethod processes one method call from the command stream. Methods
// below the register count write the register file and run their side
// effects; methods above it accumulate macro invocations. lastCall marks
// the final call of the submission batch and triggers pending macro
// execution.
func (m *Maxwell3D) CallMethod(method uint32, argument uint32, lastCall bool) error {
	if method >= maxwell.RegisterCount {
		return m.callMacroMethod(method, argument, lastCall)
	}

	// The active shadow policy always comes from the shadow copy of the
	// control register. The policy covers writes to the control register
	// itself, so a replay cannot be escaped by a plain method write.
	switch maxwell.ShadowRamControl(m.shadow[regShadowRamControl]) {
	case maxwell.ShadowRamTrack, maxwell.ShadowRamTrackWithFilter:
		m.shadow[method] = argument
	case maxwell.ShadowRamReplay:
		argument = m.shadow[method]
	}

	redundant := m.registers[method] == argument
	m.registers[method] = argument

	if !redundant {
		if err := m.handleChanged(method, argument); err != nil {
			return err
		}
	}
	return m.handleTrigger(method, argument)
}

// callMacroMethod accumulates one macro method call. An even method starts
// a new invocation of the slot it encodes; every call appends its
// argument; the batch-final call executes the accumulated invocation.
func (m *Maxwell3D) callMacroMethod(method, argument uint32, lastCall bool) error {
	if method&1 == 0 {
		m.macroIndex = int(((method - maxwell.RegisterCount) >> 1) % macroEntryCount)
		m.macroArguments = m.macroArguments[:0]
	}
	m.macroArguments = append(m.macroArguments, argument)

	if !lastCall {
		return nil
	}
	index := m.macroIndex
	arguments := make([]uint32, len(m.macroArguments))
	copy(arguments, m.macroArguments)
	m.macroArguments = m.macroArguments[:0]
	m.macroIndex = -1

	if index < 0 {
		m.logf("macro argument batch finished without a macro selected")
		return nil
	}
	if m.interpreter == nil {
		m.logf("no macro interpreter, dropping macro %d with %d arguments", index, len(arguments))
		return nil
	}
	return m.interpreter.Execute(m.macroPositions[index], arguments)
}
