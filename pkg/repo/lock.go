package repo

import (
	"fmt"
	"os"
	"time"

	"github.com/gritvcs/grit/pkg/errs"
)

// lockWait bounds how long lock acquisition spins before giving up.
const lockWait = 5 * time.Second

// acquireLock creates path exclusively, retrying until lockWait
// elapses. The file holds the owning pid for post-mortem inspection.
func acquireLock(path string) (release func(), err error) {
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, errs.Wrap(errs.KindUnknown, err, "creating lock %s", path)
		}
		if time.Now().After(deadline) {
			return nil, errs.New(errs.KindConflict, "lock %s held by another process", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// LockExclusive takes the repository-wide mutation lock. Every
// operation that rewrites refs or the ref namespace holds it for its
// full duration; object writes never need it.
func (r *Repo) LockExclusive() (release func(), err error) {
	return acquireLock(r.path("lock"))
}
