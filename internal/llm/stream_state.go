package llm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

const (
	stateIdle       = "idle"
	stateConnecting = "connecting"
	stateStreaming  = "streaming"
	stateCompleted  = "completed"
	stateFailed     = "failed"
)

var errStreamFinished = errors.New("stream already finished")

// streamLifecycle lleva el estado de una llamada en streaming y garantiza que el
// sink recibe un solo evento terminal.
type streamLifecycle struct {
	machine *fsm.FSM
}

func newStreamLifecycle(sink StreamSink) *streamLifecycle {
	machine := fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: "connect", Src: []string{stateIdle}, Dst: stateConnecting},
			{Name: "receive", Src: []string{stateConnecting}, Dst: stateStreaming},
			{Name: "complete", Src: []string{stateConnecting, stateStreaming}, Dst: stateCompleted},
			{Name: "fail", Src: []string{stateIdle, stateConnecting, stateStreaming}, Dst: stateFailed},
		},
		fsm.Callbacks{
			"enter_" + stateCompleted: func(_ context.Context, e *fsm.Event) {
				result, _ := e.Args[0].(CompletionResult)
				sink.OnDone(result)
			},
			"enter_" + stateFailed: func(_ context.Context, e *fsm.Event) {
				err, _ := e.Args[0].(error)
				sink.OnError(err)
			},
		},
	)
	return &streamLifecycle{machine: machine}
}

// Los eventos usan context.Background: una cancelación del request no debe
// impedir la transición a failed.
func (l *streamLifecycle) connect() {
	_ = l.machine.Event(context.Background(), "connect")
}

// fragment entrega un delta al sink. Un error del sink termina el stream.
func (l *streamLifecycle) fragment(sink StreamSink, text string) error {
	if l.finished() {
		return errStreamFinished
	}
	if l.machine.Is(stateConnecting) {
		_ = l.machine.Event(context.Background(), "receive")
	}
	if err := sink.OnFragment(text); err != nil {
		l.fail(err)
		return err
	}
	return nil
}

func (l *streamLifecycle) complete(result CompletionResult) {
	_ = l.machine.Event(context.Background(), "complete", result)
}

func (l *streamLifecycle) fail(err error) {
	_ = l.machine.Event(context.Background(), "fail", err)
}

func (l *streamLifecycle) finished() bool {
	return l.machine.Is(stateCompleted) || l.machine.Is(stateFailed)
}

func (l *streamLifecycle) state() string {
	return l.machine.Current()
}
