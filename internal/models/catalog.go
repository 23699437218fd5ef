package models

// Option is one entry of a fixed pick-list. Keys go into callback payloads
// and the database; labels are shown to users.
type Option struct {
	Key   string
	Label string
}

var Categories = []Option{
	{"electronics", "Electronics"},
	{"clothing", "Clothing"},
	{"bags", "Bags & Wallets"},
	{"keys", "Keys"},
	{"id_cards", "ID & Cards"},
	{"books", "Books & Stationery"},
	{"accessories", "Accessories"},
	{"sports", "Sports Equipment"},
	{"other", "Other"},
}

var Locations = []Option{
	{"library", "Library"},
	{"student_center", "Student Center"},
	{"science", "Science Building"},
	{"arts", "Arts Building"},
	{"engineering", "Engineering Hall"},
	{"cafeteria", "Cafeteria"},
	{"gym", "Gym"},
	{"parking", "Parking Lot"},
	{"bus_stop", "Bus Stop"},
	{"dormitory", "Dormitory"},
	{"other", "Other"},
}

func CategoryByKey(key string) *Option {
	return lookup(Categories, key)
}

func LocationByKey(key string) *Option {
	return lookup(Locations, key)
}

// CategoryLabel falls back to the raw key for values written by older versions.
func CategoryLabel(key string) string {
	if o := CategoryByKey(key); o != nil {
		return o.Label
	}
	return key
}

func LocationLabel(key string) string {
	if o := LocationByKey(key); o != nil {
		return o.Label
	}
	return key
}

func lookup(opts []Option, key string) *Option {
	for i := range opts {
		if opts[i].Key == key {
			return &opts[i]
		}
	}
	return nil
}
