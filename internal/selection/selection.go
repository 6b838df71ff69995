package selection

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidSelection is returned when the page bound is not positive.
var ErrInvalidSelection = errors.New("invalid selection")

// Mode is the user's choice of which pages to include.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeOdd    Mode = "odd"
	ModeEven   Mode = "even"
	ModeCustom Mode = "custom"
)

// ParseMode maps a form value to a Mode. An empty value means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeOdd, ModeEven, ModeCustom:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidSelection, s)
	}
}

// Query describes a selection before it is bound to a page count.
// Expr is only read for ModeCustom.
type Query struct {
	Mode Mode
	Expr string
}

// PageSet is a strictly ascending list of unique 1-based page numbers.
type PageSet []int

// String renders the set as "1,2,3".
func (p PageSet) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// Result is a resolved selection. Corrected holds the custom expression after
// clamping, so a UI can show what was actually applied.
type Result struct {
	Pages     PageSet
	Corrected string
}

// Empty reports whether no page was selected.
func (r Result) Empty() bool { return len(r.Pages) == 0 }

var (
	rangeToken  = regexp.MustCompile(`^(\d+)-(\d+)$`)
	singleToken = regexp.MustCompile(`^\d+$`)
)

// Resolve binds q to totalPages.
func Resolve(q Query, totalPages int) (Result, error) {
	if totalPages <= 0 {
		return Result{}, fmt.Errorf("%w: document has %d pages", ErrInvalidSelection, totalPages)
	}
	switch q.Mode {
	case ModeAll, "":
		return Result{Pages: filter(totalPages, func(int) bool { return true })}, nil
	case ModeOdd:
		return Result{Pages: filter(totalPages, func(n int) bool { return n%2 == 1 })}, nil
	case ModeEven:
		return Result{Pages: filter(totalPages, func(n int) bool { return n%2 == 0 })}, nil
	case ModeCustom:
		return parseCustom(q.Expr, totalPages), nil
	default:
		return Result{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidSelection, q.Mode)
	}
}

func filter(total int, keep func(int) bool) PageSet {
	out := make(PageSet, 0, total)
	for i := 1; i <= total; i++ {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

// parseCustom applies the correction policy token by token: bounds below 1
// become 1, a reversed range is swapped, bounds above total become total.
// Tokens that are neither a number nor a range are dropped.
func parseCustom(expr string, total int) Result {
	seen := make(map[int]struct{})
	var corrected []string

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if m := rangeToken.FindStringSubmatch(part); m != nil {
			start := clampLow(atoi(m[1], total))
			end := clampLow(atoi(m[2], total))
			if start > end {
				start, end = end, start
			}
			start = clampHigh(start, total)
			end = clampHigh(end, total)
			corrected = append(corrected, fmt.Sprintf("%d-%d", start, end))
			for i := start; i <= end; i++ {
				seen[i] = struct{}{}
			}
			continue
		}
		if singleToken.MatchString(part) {
			n := clampHigh(clampLow(atoi(part, total)), total)
			corrected = append(corrected, strconv.Itoa(n))
			seen[n] = struct{}{}
		}
	}

	pages := make(PageSet, 0, len(seen))
	for n := range seen {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return Result{Pages: pages, Corrected: strings.Join(corrected, ", ")}
}

// ParseList reads an explicit page list such as "1,2,3", the inverse of
// PageSet.String. Only plain positive numbers are kept; the result is sorted
// and unique and may be empty.
func ParseList(s string) PageSet {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if !singleToken.MatchString(part) {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 1 {
			seen[n] = struct{}{}
		}
	}
	out := make(PageSet, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// atoi parses a digit-only token. Values too large for int are treated as
// past the end of the document.
func atoi(s string, total int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return total + 1
	}
	return n
}

func clampLow(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func clampHigh(n, total int) int {
	if n > total {
		return total
	}
	return n
}
