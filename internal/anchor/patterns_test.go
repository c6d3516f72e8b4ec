package anchor

import (
	"testing"
	"time"
)

var testRef = time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestForwardRulesNormalization(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		rule     string
		wantDate time.Time
		wantPrec Precision
		wantCat  Category
	}{
		{"korean full date", "환자는 2025년 5월 3일 방문", "kr_full_date", date(2025, 5, 3), PrecisionDay, CategoryAbsolute},
		{"iso dash", "record 2024-11-20 entry", "iso_date", date(2024, 11, 20), PrecisionDay, CategoryAbsolute},
		{"iso dots", "기록 2024.1.7 참조", "iso_date", date(2024, 1, 7), PrecisionDay, CategoryAbsolute},
		{"us numeric month first", "on 05-03-2024 seen", "us_numeric", date(2024, 5, 3), PrecisionDay, CategoryAbsolute},
		{"english month", "Seen on March 5, 2024 at clinic", "en_month_date", date(2024, 3, 5), PrecisionDay, CategoryAbsolute},
		{"korean year month", "2023년 11월경 증상 시작", "kr_year_month", date(2023, 11, 1), PrecisionMonth, CategoryAbsolute},
		{"korean keyword then date", "진단일 2024-02-29 기재", "kr_keyword_date", date(2024, 2, 29), PrecisionDay, CategoryMedicalContextual},
		{"korean date then keyword", "2025-05-10 진료 기록", "kr_date_keyword", date(2025, 5, 10), PrecisionDay, CategoryMedicalContextual},
		{"hangul date then keyword", "2025년 5월 1일에 수술 시행", "kr_hangul_date_keyword", date(2025, 5, 1), PrecisionDay, CategoryMedicalContextual},
		{"english keyword date", "diagnosed on 2024-07-15 with", "en_keyword_date", date(2024, 7, 15), PrecisionDay, CategoryMedicalContextual},
		{"korean yesterday", "어제 내원함", "kr_relative_day", date(2025, 5, 9), PrecisionDay, CategoryRelative},
		{"korean day before yesterday", "그저께 발열", "kr_relative_day", date(2025, 5, 8), PrecisionDay, CategoryRelative},
		{"english today", "presented today with pain", "en_relative_day", date(2025, 5, 10), PrecisionDay, CategoryRelative},
		{"korean days ago", "3일 전 증상 발생", "kr_n_units", date(2025, 5, 7), PrecisionDay, CategoryRelative},
		{"korean weeks later", "2주 후 재방문 예정", "kr_n_units", date(2025, 5, 24), PrecisionDay, CategoryRelative},
		{"korean months ago approximate", "6개월 전 수술력", "kr_n_units", date(2024, 11, 10), PrecisionApproximate, CategoryRelative},
		{"english days ago", "pain started 10 days ago", "en_n_units", date(2025, 4, 30), PrecisionDay, CategoryRelative},
		{"duration start only", "2025-04-01부터 통원", "start_only", date(2025, 4, 1), PrecisionDay, CategoryDuration},
	}

	ex := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchors := ex.Extract(tt.text, testRef)
			var found *DateAnchor
			for i := range anchors {
				if anchors[i].Rule == tt.rule {
					found = &anchors[i]
					break
				}
			}
			if found == nil {
				t.Fatalf("rule %s did not match %q (got %d anchors)", tt.rule, tt.text, len(anchors))
			}
			if !found.Date.Equal(tt.wantDate) {
				t.Errorf("date = %s, want %s", found.Date.Format("2006-01-02"), tt.wantDate.Format("2006-01-02"))
			}
			if found.Precision != tt.wantPrec {
				t.Errorf("precision = %s, want %s", found.Precision, tt.wantPrec)
			}
			if found.Category != tt.wantCat {
				t.Errorf("category = %s, want %s", found.Category, tt.wantCat)
			}
		})
	}
}

func TestRangeExtraction(t *testing.T) {
	ex := NewExtractor()

	anchors := ex.Extract("2025-03-01 ~ 2025-03-10 입원", testRef)
	var rng *DateAnchor
	for i := range anchors {
		if anchors[i].Rule == "range_numeric" {
			rng = &anchors[i]
		}
	}
	if rng == nil {
		t.Fatal("range_numeric did not match")
	}
	if !rng.Date.Equal(date(2025, 3, 1)) {
		t.Errorf("start = %s, want 2025-03-01", rng.Date.Format("2006-01-02"))
	}
	if rng.EndDate == nil || !rng.EndDate.Equal(date(2025, 3, 10)) {
		t.Errorf("end = %v, want 2025-03-10", rng.EndDate)
	}

	anchors = ex.Extract("2025-03-01부터 5일간 입원", testRef)
	rng = nil
	for i := range anchors {
		if anchors[i].Rule == "range_relative_length" {
			rng = &anchors[i]
		}
	}
	if rng == nil {
		t.Fatal("range_relative_length did not match")
	}
	if rng.EndDate == nil || !rng.EndDate.Equal(date(2025, 3, 5)) {
		t.Errorf("end = %v, want 2025-03-05 (start + 4)", rng.EndDate)
	}
}

func TestInvalidDatesRejected(t *testing.T) {
	texts := []string{
		"2025-02-30 진료",  // no Feb 30
		"2025-13-01 내원",  // month 13
		"2023년 2월 29일 입원", // not a leap year
		"1899-05-01 기록",  // below year floor
	}
	ex := NewExtractor()
	for _, text := range texts {
		for _, a := range ex.Extract(text, testRef) {
			if a.Valid() && a.Precision == PrecisionDay {
				t.Errorf("%q produced day-precision anchor %s via %s", text, a.Date.Format("2006-01-02"), a.Rule)
			}
		}
	}
}

func TestLeapDayAccepted(t *testing.T) {
	ex := NewExtractor()
	anchors := ex.Extract("2024-02-29 검사", testRef)
	if len(anchors) == 0 {
		t.Fatal("leap day 2024-02-29 should extract")
	}
	if !anchors[0].Date.Equal(date(2024, 2, 29)) {
		t.Errorf("date = %s, want 2024-02-29", anchors[0].Date.Format("2006-01-02"))
	}
}

func TestBackwardRules(t *testing.T) {
	ex := NewValidationExtractor()

	// Middle component 25 cannot be a month: swapped reading applies.
	anchors := ex.Extract("검진 2024-25-03 기재", testRef)
	if len(anchors) != 1 {
		t.Fatalf("got %d anchors, want 1", len(anchors))
	}
	if !anchors[0].Date.Equal(date(2024, 3, 25)) {
		t.Errorf("date = %s, want 2024-03-25", anchors[0].Date.Format("2006-01-02"))
	}
	if anchors[0].SweepOrigin != SweepBackward {
		t.Errorf("origin = %s, want backward", anchors[0].SweepOrigin)
	}

	// A plausible YYYY-MM-DD belongs to the forward sweep.
	anchors = ex.Extract("2024-05-03 기록", testRef)
	for _, a := range anchors {
		if a.Rule == "swapped_month_day" {
			t.Errorf("swapped_month_day should not fire on plausible month %q", a.RawText)
		}
	}

	// Day-first reading of the year-last shape.
	anchors = ex.Extract("on 05-03-2024", testRef)
	if len(anchors) != 1 || anchors[0].Rule != "day_first" {
		t.Fatalf("expected day_first anchor, got %+v", anchors)
	}
	if !anchors[0].Date.Equal(date(2024, 3, 5)) {
		t.Errorf("date = %s, want 2024-03-05", anchors[0].Date.Format("2006-01-02"))
	}
}
