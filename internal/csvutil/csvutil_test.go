package csvutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestReadRecords(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [][]string
		wantErr bool
	}{
		{
			name:  "byte order mark dropped",
			input: "\ufeffDatetime,AQI\n2024-01-01,100\n",
			want:  [][]string{{"Datetime", "AQI"}, {"2024-01-01", "100"}},
		},
		{
			name:  "short rows padded",
			input: "a,b,c\n1\n1,2,3\n",
			want:  [][]string{{"a", "b", "c"}, {"1", "", ""}, {"1", "2", "3"}},
		},
		{
			name:  "repeated header names",
			input: "date,aqi,date,date\n1,2,3,4\n",
			want:  [][]string{{"date", "aqi", "date.1", "date.2"}, {"1", "2", "3", "4"}},
		},
		{
			name:    "long row",
			input:   "a,b\n1,2,3\n",
			wantErr: true,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadRecords(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadRecords = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringFrame(t *testing.T) {
	df, err := StringFrame(strings.NewReader("date,aqi\n2024-01-01,NA\n2024-01-02,<nil>\n"))
	if err != nil {
		t.Fatalf("StringFrame: %v", err)
	}
	if got := df.Col("aqi").Records(); !reflect.DeepEqual(got, []string{"NA", "<nil>"}) {
		t.Errorf("aqi = %q, want cells unchanged", got)
	}
}

func TestStringFrame_HeaderOnly(t *testing.T) {
	df, err := StringFrame(strings.NewReader("date,aqi\n"))
	if err != nil {
		t.Fatalf("StringFrame: %v", err)
	}
	if df.Nrow() != 0 || !reflect.DeepEqual(df.Names(), []string{"date", "aqi"}) {
		t.Errorf("frame = %d rows, names %v", df.Nrow(), df.Names())
	}
}

func TestStringFrame_Empty(t *testing.T) {
	if _, err := StringFrame(strings.NewReader("")); err == nil {
		t.Fatal("expected error for input without a header")
	}
}
