package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_CoalescesSignals(t *testing.T) {
	var n Notifier
	ch, cancel := n.Subscribe()
	defer cancel()

	n.Notify()
	n.Notify()
	n.Notify()

	assert.Len(t, ch, 1)
	<-ch
	assert.Len(t, ch, 0)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	var n Notifier
	a, cancelA := n.Subscribe()
	b, cancelB := n.Subscribe()
	defer cancelB()

	cancelA()
	cancelA()
	n.Notify()

	assert.Len(t, a, 0)
	assert.Len(t, b, 1)
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, n.Notify)
}
