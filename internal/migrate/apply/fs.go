package apply

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

var (
	openFileRO = os.Open
	openFileRW = os.OpenFile
	removeFile = os.Remove
	mkdirAll   = os.MkdirAll
)

// errDestinationExists is returned by copyFileExclusive when the destination
// appeared between the existence check and the create.
var errDestinationExists = errors.New("destination exists")

// copyFileExclusive copies src to a new file at dst. It refuses to open an
// existing dst, so it can never overwrite. A partially written dst is removed
// so a later run sees it as absent and retries it.
func copyFileExclusive(src, dst string, perm fs.FileMode) error {
	in, err := openFileRO(src) // #nosec G304 -- src is validated by the executor
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openFileRW(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errDestinationExists
		}
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = removeFile(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = removeFile(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
