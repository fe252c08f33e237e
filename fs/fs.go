package appfs

import "embed"

// FS holds the files shipped inside the binaries: email templates, the common passwords list and SQL migrations.
//go:embed assets/templates/email/*
//go:embed assets/common-passwords.txt
//go:embed migrations/*.sql
var FS embed.FS
