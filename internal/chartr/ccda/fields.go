package ccda

import (
	"strings"

	"github.com/beevik/etree"
)

// accessor pulls one candidate value out of an entry element. The same
// clinical fact can live at several structurally valid locations depending
// on the exporter, so each field is described by an ordered list of
// accessors tried in priority order: first non-empty result wins.
type accessor func(e *etree.Element) string

func firstOf(e *etree.Element, accessors ...accessor) string {
	for _, a := range accessors {
		if v := strings.TrimSpace(a(e)); v != "" {
			return v
		}
	}
	return ""
}

// descend walks a chain of first-matching descendants: descend(e, "a", "b")
// finds the first "a" under e, then the first "b" under that.
func descend(e *etree.Element, tags ...string) *etree.Element {
	cur := e
	for _, tag := range tags {
		if cur == nil {
			return nil
		}
		cur = findFirstDescendant(cur, tag)
	}
	return cur
}

// pathAttr reads an attribute off the element at the end of a descent chain.
func pathAttr(name string, tags ...string) accessor {
	return func(e *etree.Element) string {
		return attr(descend(e, tags...), name)
	}
}

// pathText reads the flattened text of the element at the end of a chain.
func pathText(tags ...string) accessor {
	return func(e *etree.Element) string {
		target := descend(e, tags...)
		if target == nil {
			return ""
		}
		return textContent(target)
	}
}

// quantity renders a PQ element as "value unit" ("10 mg") or just the
// value when the unit is absent or the placeholder "1".
func quantity(tags ...string) accessor {
	return func(e *etree.Element) string {
		target := descend(e, tags...)
		if target == nil {
			return ""
		}
		value := attr(target, "value")
		if value == "" {
			return ""
		}
		unit := attr(target, "unit")
		if unit == "" || unit == "1" {
			return value
		}
		return value + " " + unit
	}
}

// ivlText renders an IVL_PQ range element ("low".."high") as "low-high",
// used for reference ranges expressed structurally instead of as text.
func ivlText(tags ...string) accessor {
	return func(e *etree.Element) string {
		target := descend(e, tags...)
		if target == nil {
			return ""
		}
		low := attr(findFirstDescendant(target, "low"), "value")
		high := attr(findFirstDescendant(target, "high"), "value")
		switch {
		case low != "" && high != "":
			return low + "-" + high
		case high != "":
			return "<" + high
		case low != "":
			return ">" + low
		default:
			return ""
		}
	}
}

// periodText renders a PIVL_TS dosing period as "every N unit".
func periodText() accessor {
	return func(e *etree.Element) string {
		period := descend(e, "period")
		if period == nil {
			return ""
		}
		value := attr(period, "value")
		unit := attr(period, "unit")
		if value == "" {
			return ""
		}
		if unit == "" {
			return "every " + value
		}
		return "every " + value + " " + unit
	}
}
