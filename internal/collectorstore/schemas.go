package collectorstore

import "embed"

// sqlSchemas is the embedded migration file system, embedded at compile
// time for portability: this store needs no external migration tool at
// deploy time.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
