package products

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Áo thun Đồng phục":   "ao-thun-dong-phuc",
		"  Mug -- 350ml  ":    "mug-350ml",
		"Sticker (die-cut)!":  "sticker-die-cut",
		"Sổ tay A5 bìa cứng": "so-tay-a5-bia-cung",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
