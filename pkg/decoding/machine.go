// Package decoding contains the pure decode computations and the
// suspend/resume machinery that drives them. Decode logic never touches the
// network: whenever it needs bytecode or a storage word it does not have, it
// suspends with a single typed request and waits to be resumed with the
// payload. The driver layer in pkg/decoder owns the resume loop.
package decoding

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/solscope/solscope/pkg/provider"
)

// State is the observable state of a decode machine.
type State int

const (
	StateRunning State = iota
	StateAwaitingCode
	StateAwaitingStorage
	StateDone
)

// CodeRequest asks for the bytecode at an address as of a regularized block.
type CodeRequest struct {
	Address common.Address
	Block   provider.BlockTag
}

// StorageRequest asks for one storage word of the contract currently being
// decoded.
type StorageRequest struct {
	Slot common.Hash
}

type request struct {
	code    *CodeRequest
	storage *StorageRequest
}

// Machine runs one decode computation. At most one request is pending at any
// time, and each resume call must answer exactly the pending request. The
// zero value is not usable; construct with Run.
type Machine[T any] struct {
	cancel context.CancelFunc

	requests    chan request
	codeReplies chan []byte
	wordReplies chan common.Hash
	finished    chan struct{}

	state          State
	pendingCode    *CodeRequest
	pendingStorage *StorageRequest

	value T
	err   error
}

// Run starts fn on its own goroutine and returns the machine driving it.
// Cancelling ctx aborts the computation; an abandoned machine holds nothing
// beyond ordinary memory once aborted.
func Run[T any](ctx context.Context, fn func(env *Env) (T, error)) *Machine[T] {
	ctx, cancel := context.WithCancel(ctx)
	m := &Machine[T]{
		cancel:      cancel,
		requests:    make(chan request),
		codeReplies: make(chan []byte),
		wordReplies: make(chan common.Hash),
		finished:    make(chan struct{}),
	}
	env := &Env{
		ctx:         ctx,
		requests:    m.requests,
		codeReplies: m.codeReplies,
		wordReplies: m.wordReplies,
	}
	go func() {
		defer close(m.finished)
		m.value, m.err = fn(env)
	}()
	return m
}

// Next blocks until the computation either suspends on a request or
// finishes, and returns the resulting state.
func (m *Machine[T]) Next() State {
	if m.state == StateAwaitingCode || m.state == StateAwaitingStorage {
		return m.state
	}
	select {
	case req := <-m.requests:
		if req.code != nil {
			m.state = StateAwaitingCode
			m.pendingCode = req.code
		} else {
			m.state = StateAwaitingStorage
			m.pendingStorage = req.storage
		}
	case <-m.finished:
		m.state = StateDone
	}
	return m.state
}

// CodeRequest returns the pending code request; valid only in
// StateAwaitingCode.
func (m *Machine[T]) CodeRequest() *CodeRequest {
	return m.pendingCode
}

// StorageRequest returns the pending storage request; valid only in
// StateAwaitingStorage.
func (m *Machine[T]) StorageRequest() *StorageRequest {
	return m.pendingStorage
}

// ResumeCode answers the pending code request.
func (m *Machine[T]) ResumeCode(code []byte) {
	m.pendingCode = nil
	m.state = StateRunning
	m.codeReplies <- code
}

// ResumeStorage answers the pending storage request.
func (m *Machine[T]) ResumeStorage(word common.Hash) {
	m.pendingStorage = nil
	m.state = StateRunning
	m.wordReplies <- word
}

// Abort cancels the computation. Safe to call in any state, including after
// completion.
func (m *Machine[T]) Abort() {
	m.cancel()
}

// Result returns the final value and error; valid only in StateDone.
func (m *Machine[T]) Result() (T, error) {
	return m.value, m.err
}

// Env is the suspension surface handed to decode computations. Its methods
// block the computation's goroutine until the driver resumes it; no compute
// thread beyond that goroutine waits.
type Env struct {
	ctx         context.Context
	requests    chan<- request
	codeReplies <-chan []byte
	wordReplies <-chan common.Hash
}

var errAborted = errors.New("decode aborted")

// Code suspends for the bytecode at address as of block.
func (e *Env) Code(address common.Address, block provider.BlockTag) ([]byte, error) {
	select {
	case e.requests <- request{code: &CodeRequest{Address: address, Block: block}}:
	case <-e.ctx.Done():
		return nil, errAborted
	}
	select {
	case code := <-e.codeReplies:
		return code, nil
	case <-e.ctx.Done():
		return nil, errAborted
	}
}

// StorageWord suspends for one storage word of the contract being decoded.
func (e *Env) StorageWord(slot common.Hash) (common.Hash, error) {
	select {
	case e.requests <- request{storage: &StorageRequest{Slot: slot}}:
	case <-e.ctx.Done():
		return common.Hash{}, errAborted
	}
	select {
	case word := <-e.wordReplies:
		return word, nil
	case <-e.ctx.Done():
		return common.Hash{}, errAborted
	}
}
