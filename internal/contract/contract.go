// Package contract checks pipeline artifacts against CUE schemas.
//
// The built-in schema lives in metadata.cue. A directory of additional CUE
// files can be loaded on top of it to tighten the contract for a
// deployment, e.g. pinning schema_version or requiring a minimum row count.
package contract

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed metadata.cue
var metadataSchema string

// MetadataPath is the definition every metadata document must satisfy.
const MetadataPath = "#Metadata"

// Error codes.
const (
	ErrCodeLoadFailed  = "C001" // CUE load failed
	ErrCodeBuildFailed = "C002" // CUE build failed
	ErrCodeParse       = "C003" // artifact is not valid JSON/CUE
	ErrCodeViolation   = "C004" // artifact violates the contract
	ErrCodeNotFound    = "C005" // contract directory missing
)

// Error is a contract failure with a source position when CUE has one.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Set is a compiled collection of artifact schemas.
type Set struct {
	ctx    *cue.Context
	schema cue.Value
}

// Default returns the built-in contracts.
func Default() (*Set, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(metadataSchema, cue.Filename("metadata.cue"))
	if err := v.Err(); err != nil {
		return nil, wrap(ErrCodeBuildFailed, err)
	}
	return &Set{ctx: ctx, schema: v}, nil
}

// Load returns the built-in contracts unified with every CUE file in dir.
// The files must belong to package contract and may refine #Metadata.
func Load(dir string) (*Set, error) {
	set, err := Default()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("contract directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, wrap(ErrCodeLoadFailed, err)
	}
	if len(files) == 0 {
		return set, nil
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &Error{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return nil, wrap(ErrCodeLoadFailed, err)
	}
	extra := set.ctx.BuildInstance(instances[0])
	if err := extra.Err(); err != nil {
		return nil, wrap(ErrCodeBuildFailed, err)
	}

	set.schema = set.schema.Unify(extra)
	if err := set.schema.Err(); err != nil {
		return nil, wrap(ErrCodeBuildFailed, err)
	}
	return set, nil
}

// CheckMetadata validates a JSON metadata document.
func (s *Set) CheckMetadata(data []byte) error {
	return s.check(MetadataPath, data, "metadata.json")
}

func (s *Set) check(path string, data []byte, filename string) error {
	def := s.schema.LookupPath(cue.ParsePath(path))
	if !def.Exists() {
		return &Error{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("schema %s not defined", path)}
	}
	doc := s.ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return wrap(ErrCodeParse, err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return wrap(ErrCodeViolation, err)
	}
	return nil
}

// wrap converts a CUE error into an *Error carrying the first position.
func wrap(code string, err error) error {
	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		var pos token.Pos
		if positions := cueerrors.Positions(cerr); len(positions) > 0 {
			pos = positions[0]
		}
		return &Error{Code: code, Message: cueerrors.Details(cerr, nil), Pos: pos}
	}
	return &Error{Code: code, Message: err.Error()}
}
