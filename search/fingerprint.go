package search

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/drblury/operatorhost/operator"
)

// fingerprint hashes everything that ends up in the index, so an unchanged
// operator set can skip the rebuild.
func fingerprint(ops []*operator.Registered) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	for _, op := range ops {
		if op == nil || op.Descriptor == nil {
			continue
		}
		info := op.Info()
		write(op.ID)
		write(info.Name)
		write(info.Title)
		write(info.Description)
		write(info.Version)
		write(op.Category())

		tags := slices.Clone(info.Tags)
		slices.Sort(tags)
		write(strings.Join(tags, "\x01"))
		write(strings.Join(op.Descriptor.SortedPaths(), "\x01"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
