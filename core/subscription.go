package core

// UnsubscribeFunc adapts a plain function to the Unsubscriber interface.
type UnsubscribeFunc func() error

func (u UnsubscribeFunc) Unsubscribe() error {
	return u()
}

type Unsubscriber interface {
	Unsubscribe() error
}
