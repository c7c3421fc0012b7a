package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hwci/hwci/script"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	f, err := Lookup(ClassMock)
	require.NoError(t, err)
	assert.Equal(t, ClassMock, f(nil, zerolog.Nop()).Name())

	_, err = Lookup("UfoCamera")
	require.Error(t, err)
}

func TestScriptSession_RunsRegisteredStepsInOrder(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "steps.log")

	defs := map[string]script.Definition{}
	for _, name := range []string{"pcie_init", "power_up", "status"} {
		path := filepath.Join(dir, name+".sh")
		body := "#!/bin/sh\necho " + name + " >> " + logPath + "\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
		defs[name] = script.Definition{Path: path}
	}
	scripts, err := script.NewRegistry(zerolog.Nop(), defs, nil)
	require.NoError(t, err)

	session := NewScriptSession(scripts, zerolog.Nop())
	require.NoError(t, session.SetUp(context.Background()))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "pcie_init\npower_up\nstatus\n", string(data))
}

func TestScriptSession_FailingStep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "power_down.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 2\n"), 0o755))

	scripts, err := script.NewRegistry(zerolog.Nop(), map[string]script.Definition{
		"power_down": {Path: path},
	}, nil)
	require.NoError(t, err)

	err = NewScriptSession(scripts, zerolog.Nop()).TearDown(context.Background())
	require.ErrorContains(t, err, "exited with code 2")
}
