package opportunity

import (
	"fmt"
	"strconv"
	"strings"

	"opportunity-hunter/internal/domain"
)

// Cursors are plain decimal offsets into the arranged feed.
func decodeCursor(cursor string) (int, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, cursor)
	}
	return offset, nil
}

func encodeCursor(offset int) string {
	return strconv.Itoa(offset)
}
