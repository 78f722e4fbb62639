package shortlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Noise cancelling,  over-ear", "Noise cancelling,  over-ear"},
		{"paragraphs", "<p>Noise cancelling</p><p>Over-ear</p>", "Noise cancelling Over-ear"},
		{"list", "<ul><li>Bluetooth 5.3</li><li>30h battery</li></ul>", "Bluetooth 5.3 30h battery"},
		{"script and style removed", "<style>p{}</style><p>Kept</p><script>alert(1)</script>", "Kept"},
		{"inline markup keeps words whole", "<p>Blue<b>tooth</b> speaker</p>", "Bluetooth speaker"},
		{"line breaks", "first<br>second", "first second"},
		{"entities", "<b>Tom &amp; Jerry</b>", "Tom & Jerry"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
