package box

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// segment is one dotted path element, name[index]. index is -1 when absent.
type segment struct {
	name  string
	index int
}

func parsePath(path string) ([]segment, error) {
	if path == "" {
		return nil, errors.Wrap(ErrNotFound, "empty path")
	}
	parts := strings.Split(path, ".")
	segs := make([]segment, len(parts))
	for i, p := range parts {
		segs[i] = segment{name: p, index: -1}
		open := strings.IndexByte(p, '[')
		if open < 0 {
			continue
		}
		if !strings.HasSuffix(p, "]") {
			return nil, errors.Wrapf(ErrNotFound, "bad index in %q", path)
		}
		n, err := strconv.Atoi(p[open+1 : len(p)-1])
		if err != nil || n < 0 {
			return nil, errors.Wrapf(ErrNotFound, "bad index in %q", path)
		}
		segs[i] = segment{name: p[:open], index: n}
	}
	return segs, nil
}

func (s segment) at() int {
	return max(s.index, 0)
}

func typeOf(name string) ([4]byte, bool) {
	if len(name) != 4 {
		return [4]byte{}, false
	}
	return [4]byte([]byte(name)), true
}

// FindField resolves a dotted path relative to b. Own fields are searched before children,
// both in declaration order; "*" matches any child and the first one that resolves wins.
// The returned index selects the value inside a multi-valued field or table column.
func (b *Box) FindField(path string) (Field, int, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, 0, err
	}
	fd, i, err := b.find(segs)
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "%s", path)
	}
	if fd == nil {
		return nil, 0, errors.Wrapf(ErrNotFound, "%s", path)
	}
	return fd, i, nil
}

func (b *Box) find(segs []segment) (Field, int, error) {
	if fd, i, err := findInFields(b.fields, segs); fd != nil || err != nil {
		return fd, i, err
	}
	if len(segs) < 2 {
		return nil, 0, nil
	}
	s := segs[0]
	if s.name == "*" {
		n := 0
		for _, c := range b.children {
			if s.index >= 0 && n != s.index {
				n++
				continue
			}
			n++
			if fd, i, err := c.find(segs[1:]); fd != nil || err != nil {
				return fd, i, err
			}
		}
		return nil, 0, nil
	}
	t, ok := typeOf(s.name)
	if !ok {
		return nil, 0, nil
	}
	c := b.Child(t, s.at())
	if c == nil {
		if s.index > 0 && b.Child(t, 0) != nil {
			return nil, 0, errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", s.name, s.index, b.ChildCount(t))
		}
		return nil, 0, nil
	}
	return c.find(segs[1:])
}

func findInFields(fields []Field, segs []segment) (Field, int, error) {
	s := segs[0]
	for _, fd := range fields {
		if l, ok := fd.(*DescriptorList); ok && fd.Name() == "" {
			for _, d := range l.values {
				if r, i, err := findInFields(d.fields, segs); r != nil || err != nil {
					return r, i, err
				}
			}
			continue
		}
		if fd.Name() != s.name {
			continue
		}
		if len(segs) == 1 {
			return fd, s.at(), nil
		}
		switch v := fd.(type) {
		case *Table:
			col := v.Column(segs[1].name)
			if col == nil || len(segs) > 2 {
				return nil, 0, nil
			}
			row := segs[1].index
			if row < 0 {
				row = s.at()
			}
			return col, row, nil
		case *DescriptorList:
			d := v.Descriptor(s.at())
			if d == nil {
				if len(v.values) == 0 {
					return nil, 0, nil
				}
				return nil, 0, errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", s.name, s.at(), len(v.values))
			}
			return findInFields(d.fields, segs[1:])
		}
		return nil, 0, nil
	}
	return nil, 0, nil
}

func checkIndex(fd Field, i int) error {
	if i >= fd.Count() {
		return errors.Wrapf(ErrOutOfRange, "%s[%d] of %d", fd.Name(), i, fd.Count())
	}
	return nil
}

func mismatch(fd Field, want string) error {
	return errors.Wrapf(ErrTypeMismatch, "%s is %s, not %s", fd.Name(), fd.Kind(), want)
}

// FindInteger returns the integer field at path, or nil when it is absent or of another kind.
func (b *Box) FindInteger(path string) *Integer {
	fd, _, err := b.FindField(path)
	if err != nil {
		return nil
	}
	v, _ := fd.(*Integer)
	return v
}

func (b *Box) GetInteger(path string) (uint64, error) {
	fd, i, err := b.FindField(path)
	if err != nil {
		return 0, err
	}
	v, ok := fd.(*Integer)
	if !ok {
		return 0, mismatch(fd, "integer")
	}
	if err = checkIndex(fd, i); err != nil {
		return 0, err
	}
	return v.Value(i), nil
}

func (b *Box) SetInteger(path string, value uint64) error {
	fd, i, err := b.FindField(path)
	if err != nil {
		return err
	}
	v, ok := fd.(*Integer)
	if !ok {
		return mismatch(fd, "integer")
	}
	return v.SetValue(value, i)
}

func (b *Box) GetFloat(path string) (float64, error) {
	fd, i, err := b.FindField(path)
	if err != nil {
		return 0, err
	}
	v, ok := fd.(*Float)
	if !ok {
		return 0, mismatch(fd, "float")
	}
	if err = checkIndex(fd, i); err != nil {
		return 0, err
	}
	return v.Value(i), nil
}

func (b *Box) SetFloat(path string, value float64) error {
	fd, i, err := b.FindField(path)
	if err != nil {
		return err
	}
	v, ok := fd.(*Float)
	if !ok {
		return mismatch(fd, "float")
	}
	return v.SetValue(value, i)
}

func (b *Box) GetString(path string) (string, error) {
	fd, i, err := b.FindField(path)
	if err != nil {
		return "", err
	}
	v, ok := fd.(*String)
	if !ok {
		return "", mismatch(fd, "string")
	}
	if err = checkIndex(fd, i); err != nil {
		return "", err
	}
	return v.Value(i), nil
}

func (b *Box) SetString(path string, value string) error {
	fd, i, err := b.FindField(path)
	if err != nil {
		return err
	}
	v, ok := fd.(*String)
	if !ok {
		return mismatch(fd, "string")
	}
	return v.SetValue(value, i)
}

func (b *Box) GetBytes(path string) ([]byte, error) {
	fd, i, err := b.FindField(path)
	if err != nil {
		return nil, err
	}
	v, ok := fd.(*Bytes)
	if !ok {
		return nil, mismatch(fd, "bytes")
	}
	if err = checkIndex(fd, i); err != nil {
		return nil, err
	}
	return v.Value(i), nil
}

func (b *Box) SetBytes(path string, value []byte) error {
	fd, i, err := b.FindField(path)
	if err != nil {
		return err
	}
	v, ok := fd.(*Bytes)
	if !ok {
		return mismatch(fd, "bytes")
	}
	return v.SetValue(value, i)
}

// FindBox resolves a dotted path of child types relative to b.
func (b *Box) FindBox(path string) *Box {
	segs, err := parsePath(path)
	if err != nil {
		return nil
	}
	return b.findBox(segs)
}

func (b *Box) findBox(segs []segment) *Box {
	if len(segs) == 0 {
		return b
	}
	s := segs[0]
	if s.name == "*" {
		n := 0
		for _, c := range b.children {
			if s.index >= 0 && n != s.index {
				n++
				continue
			}
			n++
			if r := c.findBox(segs[1:]); r != nil {
				return r
			}
		}
		return nil
	}
	t, ok := typeOf(s.name)
	if !ok {
		return nil
	}
	if c := b.Child(t, s.at()); c != nil {
		return c.findBox(segs[1:])
	}
	return nil
}

// AddDescendants creates every missing box along path, generating each new one, and returns the last.
func (b *Box) AddDescendants(path string) (*Box, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	cur := b
	for _, s := range segs {
		t, ok := typeOf(s.name)
		if !ok {
			return nil, errors.Wrapf(ErrNotFound, "%q is not a box type", s.name)
		}
		c := cur.Child(t, 0)
		if c == nil {
			c = cur.NewChild(t)
		}
		cur = c
	}
	return cur, nil
}
