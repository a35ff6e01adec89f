// Package delivery implements the choice between receiving an activation code
// and a physical card for a purchased zero line.
//
// A Selector walks ChoosingMethod -> (CollectingAddress) -> Submitting -> Closed.
// It only validates input and delegates; all persistence happens in the
// SelectFunc supplied by the caller.
package delivery

import (
	"context"
	"errors"
	"sync"

	"github.com/shinyyama/simcard-market/internal/model"
)

type State int

const (
	StateChoosingMethod State = iota
	StateCollectingAddress
	StateSubmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateChoosingMethod:
		return "choosing_method"
	case StateCollectingAddress:
		return "collecting_address"
	case StateSubmitting:
		return "submitting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	GenericFailureMessage     = "could not register the delivery method, please try again"
	ActivationCodeUnavailable = "receiving an activation code is currently disabled; the physical card will be mailed to you"
)

var (
	ErrClosed            = errors.New("delivery selector is closed")
	ErrBusy              = errors.New("delivery submission already in progress")
	ErrMethodUnavailable = errors.New("delivery method not offered")
	ErrInvalidState      = errors.New("action not allowed in current state")
)

// SelectFunc persists the buyer's choice. addr is nil for activation codes.
type SelectFunc func(ctx context.Context, method model.DeliveryMethod, addr *Address) error

// SubmitError is returned when the SelectFunc fails. Message is safe to show.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }
func (e *SubmitError) Unwrap() error { return e.Err }

type Options struct {
	Methods []model.DeliveryMethod `json:"methods"`
	Notice  string                 `json:"notice,omitempty"`
}

type Selector struct {
	mu              sync.Mutex
	state           State
	allowActivation bool
	onSelect        SelectFunc
	method          model.DeliveryMethod
	lastError       string
}

func NewSelector(allowActivationCode bool, onSelect SelectFunc) *Selector {
	return &Selector{
		state:           StateChoosingMethod,
		allowActivation: allowActivationCode,
		onSelect:        onSelect,
	}
}

// Options lists the methods offered. Activation code is left out entirely
// when the site disables it.
func (s *Selector) Options() Options {
	if s.allowActivation {
		return Options{Methods: []model.DeliveryMethod{model.DeliveryMethodActivationCode, model.DeliveryMethodPhysicalCard}}
	}
	return Options{
		Methods: []model.DeliveryMethod{model.DeliveryMethodPhysicalCard},
		Notice:  ActivationCodeUnavailable,
	}
}

func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Selector) Method() model.DeliveryMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// LastError is the message of the most recent failed submission.
func (s *Selector) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Choose picks a method. An activation code is submitted right away; a
// physical card moves on to address collection.
func (s *Selector) Choose(ctx context.Context, method model.DeliveryMethod) error {
	s.mu.Lock()
	if err := s.guard(StateChoosingMethod); err != nil {
		s.mu.Unlock()
		return err
	}
	switch method {
	case model.DeliveryMethodActivationCode:
		if !s.allowActivation {
			s.mu.Unlock()
			return ErrMethodUnavailable
		}
		s.method = method
		s.state = StateSubmitting
		s.mu.Unlock()
		return s.submit(ctx, nil)
	case model.DeliveryMethodPhysicalCard:
		s.method = method
		s.state = StateCollectingAddress
		s.mu.Unlock()
		return nil
	default:
		s.mu.Unlock()
		return ErrMethodUnavailable
	}
}

// SubmitAddress validates the address and, when it passes, submits the
// physical card choice. Validation failures leave the state unchanged.
func (s *Selector) SubmitAddress(ctx context.Context, addr Address) error {
	s.mu.Lock()
	if err := s.guard(StateCollectingAddress); err != nil {
		s.mu.Unlock()
		return err
	}
	addr = addr.Normalize()
	if errs := addr.Validate(); errs != nil {
		s.mu.Unlock()
		return errs
	}
	s.state = StateSubmitting
	s.mu.Unlock()
	return s.submit(ctx, &addr)
}

// Cancel closes the selector with no result. A running submission cannot be cancelled.
func (s *Selector) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSubmitting:
		return ErrBusy
	case StateClosed:
		return ErrClosed
	}
	s.reset()
	s.state = StateClosed
	return nil
}

func (s *Selector) submit(ctx context.Context, addr *Address) error {
	s.mu.Lock()
	method := s.method
	s.mu.Unlock()

	err := s.onSelect(ctx, method, addr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = GenericFailureMessage
		}
		// the buyer restarts from the method choice; the address is discarded
		s.reset()
		s.lastError = msg
		s.state = StateChoosingMethod
		return &SubmitError{Message: msg, Err: err}
	}
	s.reset()
	s.state = StateClosed
	return nil
}

func (s *Selector) guard(want State) error {
	switch s.state {
	case want:
		return nil
	case StateClosed:
		return ErrClosed
	case StateSubmitting:
		return ErrBusy
	}
	return ErrInvalidState
}

func (s *Selector) reset() {
	s.method = ""
	s.lastError = ""
}
