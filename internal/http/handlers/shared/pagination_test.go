package shared

import "testing"

func TestNormalizePagination(t *testing.T) {
	cases := []struct {
		page     int
		size     int
		wantPage int
		wantSize int
	}{
		{0, 0, 1, defaultPageSize},
		{-3, 50, 1, 50},
		{2, 1000, 2, maxPageSize},
	}
	for _, tc := range cases {
		page, size := NormalizePagination(tc.page, tc.size)
		if page != tc.wantPage || size != tc.wantSize {
			t.Fatalf("NormalizePagination(%d, %d) want (%d, %d) got (%d, %d)", tc.page, tc.size, tc.wantPage, tc.wantSize, page, size)
		}
	}
}

func TestQueryInt(t *testing.T) {
	if got := QueryInt(" 15 ", 1); got != 15 {
		t.Fatalf("want 15 got %d", got)
	}
	if got := QueryInt("abc", 7); got != 7 {
		t.Fatalf("want fallback 7 got %d", got)
	}
	if got := QueryInt("", 3); got != 3 {
		t.Fatalf("want fallback 3 got %d", got)
	}
}
