// Package textutil provides small string helpers shared by the CLI: deriving
// script names from capture files and conditional formatting.
package textutil
