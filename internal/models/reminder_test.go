package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffsets(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		wantNames []string
		wantErr   bool
	}{
		{name: "default", spec: DefaultOffsets, wantNames: []string{"24h", "1h", "15m"}},
		{name: "unsorted with spaces", spec: " 15m, 24h ,1h", wantNames: []string{"24h", "1h", "15m"}},
		{name: "duplicates collapse", spec: "60m,1h", wantNames: []string{"1h"}},
		{name: "mixed units", spec: "1h30m,90s", wantNames: []string{"1h30m", "1m30s"}},
		{name: "empty entries skipped", spec: "2h,,", wantNames: []string{"2h"}},
		{name: "empty", spec: "", wantErr: true},
		{name: "garbage", spec: "tomorrow", wantErr: true},
		{name: "negative", spec: "-1h", wantErr: true},
		{name: "zero", spec: "0s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offsets, err := ParseOffsets(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(offsets))
			for _, o := range offsets {
				names = append(names, o.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestReminder_MarkDelivered(t *testing.T) {
	r := &Reminder{}
	at := time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, []RecipientRole{RoleMentor, RoleMentee}, r.PendingRecipients())

	assert.True(t, r.MarkDelivered(RoleMentee, at))
	assert.Nil(t, r.DeliveredAt)
	assert.Equal(t, []RecipientRole{RoleMentor}, r.PendingRecipients())

	assert.False(t, r.MarkDelivered(RoleMentee, at.Add(time.Minute)), "already delivered")
	assert.False(t, r.MarkDelivered("observer", at))

	assert.True(t, r.MarkDelivered(RoleMentor, at.Add(2*time.Minute)))
	assert.True(t, r.FullyDelivered())
	require.NotNil(t, r.DeliveredAt)
	assert.Equal(t, at.Add(2*time.Minute), *r.DeliveredAt)
	assert.Empty(t, r.PendingRecipients())
}
