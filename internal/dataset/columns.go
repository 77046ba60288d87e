package dataset

import (
	"sort"
	"strings"

	"github.com/JakeFAU/dwellist/internal/listing"
)

const (
	pricePrefix   = "room_"
	depositPrefix = "deposit"
	imagePrefix   = "image_"
)

// leadingColumns fixes the position of the record's own columns at the
// front of the core group.
var leadingColumns = []string{
	listing.ColumnID,
	listing.ColumnURL,
	listing.ColumnTitle,
	listing.ColumnDescription,
	listing.ColumnAvailable,
	listing.ColumnType,
	listing.ColumnArea,
	listing.ColumnPostcode,
	listing.ColumnNearestStation,
	listing.ColumnLatitude,
	listing.ColumnLongitude,
	listing.ColumnDateScraped,
	listing.ColumnMainImage,
}

type columnGroup int

const (
	groupCore columnGroup = iota
	groupPrice
	groupDeposit
	groupImage
)

func groupOf(col string) columnGroup {
	switch {
	case strings.HasPrefix(col, pricePrefix):
		return groupPrice
	case strings.HasPrefix(col, depositPrefix):
		return groupDeposit
	case strings.HasPrefix(col, imagePrefix):
		return groupImage
	default:
		return groupCore
	}
}

// OrderColumns sorts columns into core, price, deposit and image groups.
// The result depends only on the set of names, never on input order.
func OrderColumns(columns []string) []string {
	rank := make(map[string]int, len(leadingColumns))
	for i, c := range leadingColumns {
		rank[c] = i
	}

	uniq := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, dup := uniq[c]; dup {
			continue
		}
		uniq[c] = struct{}{}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ga, gb := groupOf(a), groupOf(b)
		if ga != gb {
			return ga < gb
		}
		if ga == groupCore {
			ra, aFixed := rank[a]
			rb, bFixed := rank[b]
			switch {
			case aFixed && bFixed:
				return ra < rb
			case aFixed:
				return true
			case bFixed:
				return false
			default:
				return a < b
			}
		}
		return naturalLess(a, b)
	})
	return out
}

// naturalLess compares strings treating digit runs as numbers, so room_2_price
// sorts before room_10_price.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := isDigit(a[0]), isDigit(b[0])
		switch {
		case da && db:
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			a, b = ra, rb
		case a[0] != b[0]:
			return a[0] < b[0]
		default:
			a, b = a[1:], b[1:]
		}
	}
	return len(a) < len(b)
}

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
