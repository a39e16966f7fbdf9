package schema

// PayPalFields returns the default field table for PayPal IPN notifications.
// Each call returns a fresh copy.
func PayPalFields() []Field {
	return []Field{
		{Name: "confirmed", Default: BoolDefault(false)},
		{Name: "exchange_rate", Default: StringDefault("")},
		{Name: "mc_currency", Default: StringDefault("")},
		{Name: "mc_gross", Default: FloatDefault(0)},
		{Name: "mc_fee", Default: FloatDefault(0)},
		{Name: "payment_status", Default: StringDefault("")},
		{Name: "settle_amount", Default: FloatDefault(0)},
		{Name: "settle_currency", Default: StringDefault("")},
		{Name: "test_ipn", Default: BoolDefault(false)},
		{Name: "txn_type", Default: StringDefault("")},
		bounded("business", StringDefault(""), 127, true),
		bounded("first_name", TextDefault("", true), 64, false),
		bounded("item_name", TextDefault("", true), 127, false),
		bounded("item_number", StringDefault(""), 127, false),
		bounded("last_name", TextDefault("", true), 64, false),
		bounded("memo", TextDefault("", true), 255, false),
		asciiBounded("parent_txn_id", 19),
		bounded("payer_email", StringDefault(""), 127, false),
		asciiBounded("payer_id", 13),
		bounded("payer_status", StringDefault("unverified"), 13, false),
		{
			Name:        "payment_date",
			Default:     StringDefault(""),
			Conditions:  []Condition{MaxLength{Op: OpLessEqual, Bound: 28}},
			Normalizers: []Normalizer{Truncate{Length: 28}, ParseTimestamp{Force: true}},
		},
		{
			Name:       "payment_type",
			Default:    StringDefault(""),
			Conditions: []Condition{OneOf{Values: []string{"echeck", "instant"}}},
		},
		asciiBounded("receiver_id", 13),
		bounded("receiver_email", StringDefault(""), 127, true),
		{
			Name:        "residence_country",
			Default:     StringDefault(""),
			Conditions:  []Condition{MaxLength{Op: OpEqual, Bound: 2}},
			Normalizers: []Normalizer{Truncate{Length: 2}},
		},
		{
			Name:       "txn_id",
			Default:    StringDefault(""),
			Conditions: []Condition{NonEmpty{}, ASCIIOnly{}},
		},
	}
}

func bounded(name string, def Default, length int, lowercase bool) Field {
	field := Field{
		Name:        name,
		Default:     def,
		Conditions:  []Condition{MaxLength{Op: OpLessEqual, Bound: length}},
		Normalizers: []Normalizer{Truncate{Length: length}},
	}
	if lowercase {
		field.Normalizers = append(field.Normalizers, Lowercase{Force: true})
	}
	return field
}

func asciiBounded(name string, length int) Field {
	return Field{
		Name:    name,
		Default: StringDefault(""),
		Conditions: []Condition{
			ASCIIOnly{},
			MaxLength{Op: OpLessEqual, Bound: length},
		},
		Normalizers: []Normalizer{Truncate{Length: length}},
	}
}
