package sutenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSorted(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{name: "accepted", vars: map[string]string{"DIRAC_DEPRECATED_FAIL": "Yes", "DIRAC_USE_NEWTHREADPOOL": "Yes"}},
		{name: "free form", vars: map[string]string{"DIRAC_VOMSES": "/etc/vomses"}},
		{name: "unknown name", vars: map[string]string{"SOMETHING_ELSE": "x"}},
		{name: "rejected", vars: map[string]string{"DIRAC_USE_M2CRYPTO": "maybe"}, wantErr: `DIRAC_USE_M2CRYPTO="maybe"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.vars)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPerRole(t *testing.T) {
	v, ok := Lookup("DIRAC_USE_M2CRYPTO")
	require.True(t, ok)
	assert.True(t, v.PerRole)
}
