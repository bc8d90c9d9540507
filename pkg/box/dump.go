package box

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Dump writes an indented, human readable rendering of the subtree.
func (b *Box) Dump(w io.Writer) {
	b.dump(w, 0)
}

func (b *Box) dump(w io.Writer, indent int) {
	if !b.isRoot() {
		fmt.Fprintf(w, "%*s%s [offset %d, size %d]", indent, "", b.TypeString(), b.Offset, b.Size)
		if b.Type == TypeUUID {
			fmt.Fprintf(w, " usertype %s", uuid.UUID(b.UserType))
		}
		if b.unloaded {
			fmt.Fprint(w, " <payload in stream>")
		}
		fmt.Fprintln(w)
		indent += 2
	}
	b.fields.dump(w, indent)
	for _, c := range b.children {
		c.dump(w, indent)
	}
	if len(b.extra) > 0 {
		fmt.Fprintf(w, "%*s<%d trailing bytes>\n", indent, "", len(b.extra))
	}
}
