package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_HasTenHourlySlots(t *testing.T) {
	all := Default.Slots()

	assert.Len(t, all, 10)
	assert.Equal(t, "12:00", all[0])
	assert.Equal(t, "21:00", all[9])
}

func TestCatalog_Contains(t *testing.T) {
	assert.True(t, Default.Contains("19:00"))
	assert.False(t, Default.Contains("11:00"))
	assert.False(t, Default.Contains("19:30"))
	assert.False(t, Default.Contains(""))
}

func TestCatalog_Free(t *testing.T) {
	tests := []struct {
		name     string
		occupied []string
		want     []string
	}{
		{
			name:     "nothing booked",
			occupied: nil,
			want:     Default.Slots(),
		},
		{
			name:     "one slot booked on several tables",
			occupied: []string{"19:00", "19:00", "19:00"},
			want:     []string{"12:00", "13:00", "14:00", "15:00", "16:00", "17:00", "18:00", "20:00", "21:00"},
		},
		{
			name:     "unknown times are ignored",
			occupied: []string{"09:00", "12:00"},
			want:     []string{"13:00", "14:00", "15:00", "16:00", "17:00", "18:00", "19:00", "20:00", "21:00"},
		},
		{
			name:     "everything booked",
			occupied: Default.Slots(),
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Default.Free(tt.occupied))
		})
	}
}

func TestCatalog_SlotsReturnsCopy(t *testing.T) {
	c := NewCatalog("10:00", "11:00", "10:00")
	s := c.Slots()
	s[0] = "changed"

	assert.Equal(t, []string{"10:00", "11:00"}, c.Slots())
}
