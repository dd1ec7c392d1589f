package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfigFiles(t *testing.T) (hardware, gatemap string) {
	t.Helper()
	dir := t.TempDir()
	hardware = filepath.Join(dir, "hardware.json")
	gatemap = filepath.Join(dir, "gatemap.json")
	require.NoError(t, os.WriteFile(hardware, []byte(`{"qubit_number": 5}`), 0o644))
	require.NoError(t, os.WriteFile(gatemap, []byte(testTable), 0o644))
	return hardware, gatemap
}

func newTestPlugin(t *testing.T) (*Plugin, *recordingDownstream) {
	t.Helper()
	hardware, gatemap := writeConfigFiles(t)
	down := &recordingDownstream{}
	p := NewPlugin(IdentityRouter{}, down, 1, zap.NewNop())
	require.NoError(t, p.Initialize([]Command{
		{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
		{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
	}))
	return p, down
}

func TestInitialize(t *testing.T) {
	p, down := newTestPlugin(t)

	assert.Equal(t, 5, p.NumQubits())
	assert.Equal(t, 5, down.allocated, "the physical count is reported downstream")
	require.NotNil(t, p.Controller())
}

func TestInitializeEnvFallback(t *testing.T) {
	hardware, gatemap := writeConfigFiles(t)
	t.Setenv(envHardware, hardware)
	t.Setenv(envGateMap, gatemap)

	p := NewPlugin(IdentityRouter{}, &recordingDownstream{}, 1, zap.NewNop())
	require.NoError(t, p.Initialize(nil))
	assert.Equal(t, 5, p.NumQubits())
}

func TestInitializeErrors(t *testing.T) {
	hardware, gatemap := writeConfigFiles(t)

	tests := []struct {
		name string
		cmds []Command
	}{
		{"missing hardware config", []Command{
			{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
		}},
		{"missing gatemap", []Command{
			{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
		}},
		{"unknown command", []Command{
			{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
			{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
			{Iface: cmdIface, Oper: "teleport"},
		}},
		{"wrong arity", []Command{
			{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware, hardware}},
		}},
		{"bad epsilon", []Command{
			{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
			{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
			{Iface: cmdIface, Oper: "option", Args: []string{"epsilon", "-1"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlugin(IdentityRouter{}, &recordingDownstream{}, 1, zap.NewNop())
			err := p.Initialize(tt.cmds)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestInitializeIgnoresForeignInterfaces(t *testing.T) {
	hardware, gatemap := writeConfigFiles(t)
	p := NewPlugin(IdentityRouter{}, &recordingDownstream{}, 1, zap.NewNop())
	err := p.Initialize([]Command{
		{Iface: "somebodyelse", Oper: "whatever"},
		{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
		{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
	})
	require.NoError(t, err)
}

func TestInitializeBadPlatform(t *testing.T) {
	dir := t.TempDir()
	_, gatemap := writeConfigFiles(t)

	for name, contents := range map[string]string{
		"no qubit count": `{"name": "thing"}`,
		"zero qubits":    `{"qubit_number": 0}`,
		"not JSON":       `qubit_number: 5`,
	} {
		t.Run(name, func(t *testing.T) {
			hardware := filepath.Join(dir, "hw.json")
			require.NoError(t, os.WriteFile(hardware, []byte(contents), 0o644))
			p := NewPlugin(IdentityRouter{}, &recordingDownstream{}, 1, zap.NewNop())
			err := p.Initialize([]Command{
				{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
				{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
			})
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestEpsilonOption(t *testing.T) {
	hardware, gatemap := writeConfigFiles(t)
	p := NewPlugin(IdentityRouter{}, &recordingDownstream{}, 1, zap.NewNop())
	require.NoError(t, p.Initialize([]Command{
		{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}},
		{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}},
		{Iface: cmdIface, Oper: "option", Args: []string{"epsilon", "1e-3"}},
	}))
	assert.InDelta(t, 1e-3, p.epsilon, 1e-12)
}

func TestLifecycle(t *testing.T) {
	p, down := newTestPlugin(t)

	require.NoError(t, p.AllocateQubits([]int{1, 2}, false))

	ms, err := p.HandleGate(Gate{Class: ClassUnitary, Targets: []int{1}, Matrix: matH})
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.Empty(t, down.gates, "unitaries are held in the batch")

	// Advance is a timing no-op for this adapter.
	p.Advance(10)
	p.Advance(20)
	assert.Empty(t, down.gates)

	// Drop flushes whatever is pending.
	require.NoError(t, p.Drop())
	require.Len(t, down.gates, 1)
	assert.Equal(t, []int{1}, down.gates[0].Targets)

	p.FreeQubits([]int{1, 2})
}

func TestAllocateDiscardsAttachedData(t *testing.T) {
	p, _ := newTestPlugin(t)

	// Attached allocation data is discarded with a warning, not an error.
	require.NoError(t, p.AllocateQubits([]int{1}, true))
	require.NoError(t, p.AllocateQubits([]int{2}, true))
}
