package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistraComandos(t *testing.T) {
	want := []string{
		"migrate", "create", "build", "submit", "retry", "sync", "sync-submitted",
		"cancel", "can-cancel", "summary", "supplier", "token", "cert-check",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestCancelCmd_MotivoObligatorio(t *testing.T) {
	flag := cancelCmd.Flags().Lookup("reason")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}
