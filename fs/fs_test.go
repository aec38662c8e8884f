package appfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestFS_EmailTemplates(t *testing.T) {
	fnames, err := fs.Glob(FS, "templates/email/*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"templates/email/_base.gohtml",
		"templates/email/_base.txt",
		"templates/email/password_reset.gohtml",
		"templates/email/password_reset.txt",
	}, fnames)

	require.NoError(t, core.ParseEmailTemplates(FS, "templates/email", "Shule", true))
}

func TestFS_Migrations(t *testing.T) {
	fnames, err := fs.Glob(FS, "migrations/*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, fnames)

	_, err = fs.Stat(FS, "assets/common-passwords.txt")
	assert.NoError(t, err)
}
