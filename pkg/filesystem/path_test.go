package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafePath(t *testing.T) {
	tests := []struct {
		name     string
		baseDir  string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "valid file in base dir", baseDir: "/tmp/node", filename: "truststore.ks", want: "/tmp/node/truststore.ks"},
		{name: "valid subdirectory", baseDir: "/tmp/node", filename: "certificates/truststore.ks", want: "/tmp/node/certificates/truststore.ks"},
		{name: "relative base", baseDir: "node", filename: "truststore.ks", want: filepath.Join("node", "truststore.ks")},
		{name: "path traversal attempt", baseDir: "/tmp/node", filename: "../../../etc/passwd", wantErr: true},
		{name: "path traversal with clean", baseDir: "/tmp/node", filename: "certificates/../../../etc/passwd", wantErr: true},
		{name: "base directory itself", baseDir: "/tmp/node", filename: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafePath(tt.baseDir, tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathTraversal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
