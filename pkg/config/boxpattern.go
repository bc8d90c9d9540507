package config

import (
	"fmt"
	"regexp"
	"regexp/syntax"

	"gopkg.in/yaml.v3"
)

// BoxPattern matches four-character box types such as "free|skip" or "st.." against the whole type.
type BoxPattern struct {
	*regexp.Regexp
	expr string
}

// CompileBoxPattern rejects expressions that cannot match a four-character type.
func CompileBoxPattern(expr string) (BoxPattern, error) {
	if expr == "" {
		return BoxPattern{}, nil
	}
	tree, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return BoxPattern{}, fmt.Errorf("box pattern %q: %w", expr, err)
	}
	if err = checkWidth(stripAnchors(tree)); err != nil {
		return BoxPattern{}, fmt.Errorf("box pattern %q: %w", expr, err)
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return BoxPattern{}, fmt.Errorf("box pattern %q: %w", expr, err)
	}
	return BoxPattern{Regexp: re, expr: expr}, nil
}

func (p *BoxPattern) Valid() bool {
	return p.Regexp != nil
}

func (p BoxPattern) MatchType(t [4]byte) bool {
	return p.Regexp != nil && p.Regexp.Match(t[:])
}

func (p BoxPattern) String() string {
	return p.expr
}

func (p *BoxPattern) UnmarshalYAML(node *yaml.Node) (err error) {
	*p, err = CompileBoxPattern(node.Value)
	return
}

func (p BoxPattern) MarshalYAML() (interface{}, error) {
	return p.expr, nil
}

func (p BoxPattern) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.expr)), nil
}

func (p *BoxPattern) UnmarshalJSON(b []byte) (err error) {
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		b = b[1:]
	}
	if len(b) > 0 && b[len(b)-1] == '"' {
		b = b[:len(b)-1]
	}
	*p, err = CompileBoxPattern(string(b))
	return
}

func zeroWidth(op syntax.Op) bool {
	switch op {
	case syntax.OpBeginText, syntax.OpEndText, syntax.OpBeginLine, syntax.OpEndLine, syntax.OpEmptyMatch:
		return true
	}
	return false
}

// stripAnchors drops leading and trailing anchors and unwraps groups so that top-level
// alternatives can be checked one by one.
func stripAnchors(re *syntax.Regexp) *syntax.Regexp {
	for {
		switch re.Op {
		case syntax.OpCapture:
			re = re.Sub[0]
			continue
		case syntax.OpConcat:
			subs := re.Sub
			for len(subs) > 0 && zeroWidth(subs[0].Op) {
				subs = subs[1:]
			}
			for len(subs) > 0 && zeroWidth(subs[len(subs)-1].Op) {
				subs = subs[:len(subs)-1]
			}
			if len(subs) == 1 {
				re = subs[0]
				continue
			}
			if len(subs) != len(re.Sub) {
				return &syntax.Regexp{Op: syntax.OpConcat, Sub: subs}
			}
		}
		return re
	}
}

func checkWidth(re *syntax.Regexp) error {
	if re.Op == syntax.OpAlternate {
		for _, sub := range re.Sub {
			if err := checkWidth(stripAnchors(sub)); err != nil {
				return err
			}
		}
		return nil
	}
	if lo, hi := width(re); lo > 4 || (hi >= 0 && hi < 4) {
		return fmt.Errorf("%q never matches a four-character box type", re.String())
	}
	return nil
}

// width returns the shortest and longest match in bytes, hi is -1 when unbounded.
func width(re *syntax.Regexp) (lo, hi int) {
	switch re.Op {
	case syntax.OpLiteral:
		n := len(string(re.Rune))
		return n, n
	case syntax.OpCharClass, syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return 1, 1
	case syntax.OpCapture:
		return width(re.Sub[0])
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			l, h := width(sub)
			lo += l
			if hi >= 0 {
				if h < 0 {
					hi = -1
				} else {
					hi += h
				}
			}
		}
		return lo, hi
	case syntax.OpAlternate:
		for i, sub := range re.Sub {
			l, h := width(sub)
			if i == 0 || l < lo {
				lo = l
			}
			if i == 0 || hi >= 0 && (h < 0 || h > hi) {
				hi = h
			}
		}
		return lo, hi
	case syntax.OpQuest:
		_, h := width(re.Sub[0])
		return 0, h
	case syntax.OpStar:
		return 0, -1
	case syntax.OpPlus:
		l, _ := width(re.Sub[0])
		return l, -1
	case syntax.OpRepeat:
		l, h := width(re.Sub[0])
		lo = l * re.Min
		if re.Max < 0 || h < 0 {
			return lo, -1
		}
		return lo, h * re.Max
	}
	return 0, 0
}
