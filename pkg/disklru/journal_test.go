package disklru_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/disklru/pkg/disklru"
)

func Test_ParseRecord_Accepts_Line_When_Well_Formed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		want string
	}{
		{line: "CLEAN k1 2 1", want: "CLEAN k1 2 1"},
		{line: "CLEAN k1 0 0", want: "CLEAN k1 0 0"},
		{line: "CLEAN k1 007 1", want: "CLEAN k1 7 1"},
		{line: "CLEAN k1 2 1 ", want: "CLEAN k1 2 1"},
		{line: "DIRTY k1", want: "DIRTY k1"},
		{line: "REMOVE a-b_c", want: "REMOVE a-b_c"},
		{line: "READ k1", want: "READ k1"},
	}

	for _, tc := range cases {
		got, err := disklru.ParseRecordForTesting(tc.line, 2)
		if err != nil {
			t.Errorf("parse(%q): %v", tc.line, err)

			continue
		}

		if got != tc.want {
			t.Errorf("parse(%q)=%q, want=%q", tc.line, got, tc.want)
		}
	}
}

func Test_ParseRecord_Fails_With_ErrCorrupt_When_Malformed(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		"BOGUS",
		"BOGUS k1",
		"CLEAN",
		"CLEAN k1",
		"CLEAN k1 1",
		"CLEAN k1 1 1 1",
		"CLEAN k1 0000x001 1",
		"CLEAN k1 -1 1",
		"CLEAN k1  1",
		"DIRTY k1 1",
		"READ k1 extra",
		"REMOVE",
		"REMOVE K1",
		"clean k1 1 1",
	} {
		_, err := disklru.ParseRecordForTesting(line, 2)
		if !errors.Is(err, disklru.ErrCorrupt) {
			t.Errorf("parse(%q) err=%v, want ErrCorrupt", line, err)
		}
	}
}
