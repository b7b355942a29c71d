package spawn

import (
	"fmt"
	"os"

	"github.com/jmgilman/spawn/internal/pipe"
)

// launch creates the child wired to p.
//
// The child inherits the parent's stdin. Its stdout and stderr are both the
// pipe's write end; no other descriptor crosses exec. The caller must close
// the parent's write end once launch returns, or the reader never sees EOF.
func launch(args, env []string, dir string, p *pipe.Pipe) (*os.Process, error) {
	//nolint:gosec // G204: running caller-specified programs is the purpose of this package
	proc, err := os.StartProcess(args[0], args, &os.ProcAttr{
		Dir:   dir,
		Env:   env,
		Files: p.ChildFiles(os.Stdin),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return proc, nil
}
