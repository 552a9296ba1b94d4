package notify

import "log"

// Notifier delivers a human message. Swap for e-mail or SMS.
type Notifier interface {
	Notify(subject, message string) error
}

type Console struct{}

func NewConsole() *Console {
	return &Console{}
}

func (Console) Notify(subject, message string) error {
	log.Printf("[notify] %s :: %s", subject, message)
	return nil
}
