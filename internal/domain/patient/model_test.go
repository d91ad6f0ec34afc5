package patient

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_JSON(t *testing.T) {
	d := NewDate(1990, time.May, 7)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"1990-05-07"` {
		t.Errorf("unexpected %s", b)
	}

	var back Date
	if err := json.Unmarshal([]byte(`"2001-12-31"`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.String() != "2001-12-31" {
		t.Errorf("unexpected %s", back)
	}
	if err := json.Unmarshal([]byte(`"2001-13-01"`), &back); err == nil {
		t.Error("expected error for invalid month")
	}
}

func TestBloodGroup_Valid(t *testing.T) {
	for _, bg := range []BloodGroup{"A+", "AB-", "O-"} {
		if !bg.Valid() {
			t.Errorf("%s should be valid", bg)
		}
	}
	for _, bg := range []BloodGroup{"", "C+", "ab+"} {
		if bg.Valid() {
			t.Errorf("%q should be invalid", bg)
		}
	}
}

func TestUpdate_DecodeTriState(t *testing.T) {
	var u Update
	if err := json.Unmarshal([]byte(`{"address":null,"allergies":"nuts"}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !u.Address.Set || u.Address.Valid {
		t.Error("address should be an explicit null")
	}
	if !u.Allergies.Valid || u.Allergies.Value != "nuts" {
		t.Error("allergies should be set")
	}
	if u.Phone.Set {
		t.Error("phone should be absent")
	}
}
