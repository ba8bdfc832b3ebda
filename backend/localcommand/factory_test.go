package localcommand

import (
	"syscall"
	"testing"
	"time"
)

func TestNewFactory(t *testing.T) {
	factory, err := NewFactory("echo", []string{"hello"}, &Options{CloseSignal: 15, CloseTimeout: 1})
	if err != nil {
		t.Fatalf("NewFactory() error: %v", err)
	}

	if factory.Name() != "local command" {
		t.Errorf("Name() = %q, want 'local command'", factory.Name())
	}

	slave, err := factory.New(nil, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer slave.Close()

	lcmd, ok := slave.(*LocalCommand)
	if !ok {
		t.Fatalf("New() returned %T, want *LocalCommand", slave)
	}
	if lcmd.closeSignal != syscall.Signal(15) {
		t.Errorf("closeSignal = %v, want 15", lcmd.closeSignal)
	}
	if lcmd.closeTimeout != time.Second {
		t.Errorf("closeTimeout = %v, want 1s", lcmd.closeTimeout)
	}
}

func TestFactoryAppendsArguments(t *testing.T) {
	factory, err := NewFactory("echo", []string{"base"}, &Options{CloseSignal: 1, CloseTimeout: 10})
	if err != nil {
		t.Fatalf("NewFactory() error: %v", err)
	}

	params := map[string][]string{
		"arg": {"extra1", "extra2"},
	}
	slave, err := factory.New(params, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer slave.Close()

	lcmd := slave.(*LocalCommand)
	readUntil(t, lcmd, "extra2")
}
