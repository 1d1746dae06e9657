package skiplist

// Skip is a list of symbols that we do not snapshot. Their chains are huge,
// nonstandard, or churn too fast to be worth the rows.
var Skip = []string{
	// Cannabis
	"ACB",
	"CGC",
	"MSOS",
	"SNDL",
	"TLRY",

	// Leveraged ETFs
	"ERX",
	"FAS",
	"JNUG",
	"LABD",
	"LABU",
	"NUGT",
	"SDS",
	"SLV",
	"SPXU",
	"SQQQ",
	"TNA",
	"TQQQ",
	"UCO",
	"UPRO",
	"UVXY",
	"VIXY",
	"VXX",
	"YINN",

	// Indexes
	"DJX",
	"MRUT",
	"MXACW",
	"MXEA",
	"MXEF",
	"MXUSA",
	"MXWLD",
	"NANOS",
	"OEX",
	"RUT",
	"SPX",
	"VIX",
	"XEO",
	"XSP",
	"ZS",
}
