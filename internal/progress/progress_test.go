package progress_test

import (
	"testing"

	"github.com/CZERTAINLY/Syncer/internal/progress"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	type then struct {
		p  progress.Progress
		ok bool
	}
	cases := []struct {
		scenario string
		given    string
		then     then
	}{
		{"basic", "1.2MB 45% 3.4MB/s 0:00:12", then{progress.Progress{Size: "1.2MB", Percentage: 0.45, Speed: "3.4MB/s", ETA: "0:00:12"}, true}},
		{"rsync_progress2", "    32,768,000  100%   15.62MB/s    0:00:02 (xfr#1, to-chk=0/1)", then{progress.Progress{Size: "32,768,000", Percentage: 1, Speed: "15.62MB/s", ETA: "0:00:02"}, true}},
		{"zero", "0   0%    0.00kB/s    0:00:00", then{progress.Progress{Size: "0", Percentage: 0, Speed: "0.00kB/s", ETA: "0:00:00"}, true}},
		{"file_list", "receiving file list ... done", then{}},
		{"too_short", "1.2MB 45% 3.4MB/s", then{}},
		{"no_percent", "1.2MB 45 3.4MB/s 0:00:12", then{}},
		{"no_slash", "1.2MB 45% 3.4MBs 0:00:12", then{}},
		{"no_colon", "1.2MB 45% 3.4MB/s 12s", then{}},
		{"percent_not_int", "1.2MB x% 3.4MB/s 0:00:12", then{}},
		{"empty", "", then{}},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			p, ok := progress.Parse(tc.given)
			require.Equal(t, tc.then.ok, ok)
			require.Equal(t, tc.then.p, p)

			// pure: the same input gives the same output
			p2, ok2 := progress.Parse(tc.given)
			require.Equal(t, ok, ok2)
			require.Equal(t, p, p2)
		})
	}
}
