// Package migrations содержит SQL миграции goose, встроенные в бинарник
package migrations

import "embed"

// FS файлы миграций для goose.SetBaseFS
//
//go:embed *.sql
var FS embed.FS
