package medication_test

import (
	"testing"
	"time"

	"git.0xdad.com/tblyler/medtaker/datetime"
	"git.0xdad.com/tblyler/medtaker/medication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleValidate(t *testing.T) {
	require.NoError(t, daily("a", day(2024, 1, 10)).Validate())

	cases := map[string]func(s *medication.Schedule){
		"id":              func(s *medication.Schedule) { s.ID = " " },
		"name":            func(s *medication.Schedule) { s.Name = "" },
		"dosage":          func(s *medication.Schedule) { s.Dosage = "" },
		"time_of_day":     func(s *medication.Schedule) { s.TimeOfDay = datetime.TimeOfDay{Hour: 25} },
		"frequency":       func(s *medication.Schedule) { s.Frequency = "monthly" },
		"active_weekdays": func(s *medication.Schedule) { s.Frequency = medication.Weekly },
		"start_date":      func(s *medication.Schedule) { s.StartDate = time.Time{} },
		"end_date": func(s *medication.Schedule) {
			end := day(2024, 1, 9)
			s.EndDate = &end
		},
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			s := daily("a", day(2024, 1, 10))
			mutate(s)

			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, medication.ErrInvalidSchedule)

			var vErr *medication.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, field, vErr.Field)
			assert.True(t, medication.IsValidation(err))
		})
	}
}

func TestScheduleValidateWeekdayRange(t *testing.T) {
	s := daily("a", day(2024, 1, 10))
	s.Frequency = medication.Weekly
	s.ActiveWeekdays = []int{1, 7}

	assert.ErrorIs(t, s.Validate(), medication.ErrInvalidSchedule)

	s.ActiveWeekdays = []int{1, 3, 5}
	assert.NoError(t, s.Validate())
}

func TestScheduleDailyIgnoresWeekdays(t *testing.T) {
	s := daily("a", day(2024, 1, 10))
	s.ActiveWeekdays = []int{1}

	require.NoError(t, s.Validate())
	// 2024-01-10 is a Wednesday
	assert.True(t, medication.ShouldGenerate(s, day(2024, 1, 10)))

	s.ActiveWeekdays = []int{9}
	assert.ErrorIs(t, s.Validate(), medication.ErrInvalidSchedule, "weekdays are range checked for every frequency")
}

func TestScheduleEndDateSameDayAsStart(t *testing.T) {
	s := daily("a", day(2024, 1, 10))
	end := at(2024, 1, 10, 0, 0)
	s.EndDate = &end

	assert.NoError(t, s.Validate())
}

func TestScheduleWeekdays(t *testing.T) {
	s := &medication.Schedule{ActiveWeekdays: []int{5, 1, 3, 1}}

	assert.Equal(t, []int{1, 3, 5}, s.Weekdays())
	assert.True(t, s.ActiveOn(3))
	assert.False(t, s.ActiveOn(2))
}

func TestSortSchedules(t *testing.T) {
	evening := daily("c", day(2024, 1, 1))
	evening.TimeOfDay = datetime.TimeOfDay{Hour: 21}
	morningB := daily("b", day(2024, 1, 1))
	morningB.Name = "B"
	morningA := daily("a", day(2024, 1, 1))
	morningA.Name = "A"

	list := []*medication.Schedule{evening, morningB, morningA}
	medication.SortSchedules(list)

	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})
}
