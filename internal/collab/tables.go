package collab

// RatesVersion identifies the static tariff table.
const RatesVersion = "2025-q3"

type zipRange struct {
	lo, hi int
	state  string
}

// First three ZIP digits.
var zipRanges = []zipRange{
	{5, 5, "NY"}, {6, 9, "PR"}, {10, 27, "MA"}, {28, 29, "RI"}, {30, 38, "NH"}, {39, 49, "ME"},
	{50, 59, "VT"}, {60, 69, "CT"}, {70, 89, "NJ"}, {100, 149, "NY"}, {150, 196, "PA"},
	{197, 199, "DE"}, {200, 205, "DC"}, {206, 219, "MD"}, {220, 246, "VA"}, {247, 268, "WV"},
	{270, 289, "NC"}, {290, 299, "SC"}, {300, 319, "GA"}, {320, 349, "FL"}, {350, 369, "AL"},
	{370, 385, "TN"}, {386, 397, "MS"}, {398, 399, "GA"}, {400, 427, "KY"}, {430, 459, "OH"},
	{460, 479, "IN"}, {480, 499, "MI"}, {500, 528, "IA"}, {530, 549, "WI"}, {550, 567, "MN"},
	{570, 577, "SD"}, {580, 588, "ND"}, {590, 599, "MT"}, {600, 629, "IL"}, {630, 658, "MO"},
	{660, 679, "KS"}, {680, 693, "NE"}, {700, 714, "LA"}, {716, 729, "AR"}, {730, 749, "OK"},
	{750, 799, "TX"}, {800, 816, "CO"}, {820, 831, "WY"}, {832, 838, "ID"}, {840, 847, "UT"},
	{850, 865, "AZ"}, {870, 884, "NM"}, {885, 885, "TX"}, {889, 898, "NV"}, {900, 961, "CA"},
	{967, 968, "HI"}, {970, 979, "OR"}, {980, 994, "WA"}, {995, 999, "AK"},
}

var stateRegions = map[string]string{
	"AZ": "southwest", "CA": "southwest", "NM": "southwest", "NV": "southwest", "TX": "southwest", "OK": "southwest",
	"CO": "mountain", "UT": "mountain", "WY": "mountain", "MT": "mountain", "ID": "mountain",
	"FL": "southeast", "GA": "southeast", "AL": "southeast", "MS": "southeast", "LA": "southeast", "SC": "southeast",
	"NC": "southeast", "TN": "southeast", "AR": "southeast", "KY": "southeast", "VA": "southeast", "HI": "southeast", "PR": "southeast",
	"NY": "northeast", "NJ": "northeast", "PA": "northeast", "MA": "northeast", "CT": "northeast", "RI": "northeast",
	"NH": "northeast", "VT": "northeast", "ME": "northeast", "MD": "northeast", "DE": "northeast", "DC": "northeast", "WV": "northeast",
	"IL": "midwest", "IN": "midwest", "OH": "midwest", "MI": "midwest", "WI": "midwest", "MN": "midwest", "IA": "midwest",
	"MO": "midwest", "KS": "midwest", "NE": "midwest", "SD": "midwest", "ND": "midwest",
	"WA": "northwest", "OR": "northwest", "AK": "northwest",
}

var nationalRate = UtilityRate{EnergyPerKWh: 0.13, DemandPerKW: 15}

var utilityRates = map[string]UtilityRate{
	"CA": {EnergyPerKWh: 0.22, DemandPerKW: 25},
	"NY": {EnergyPerKWh: 0.19, DemandPerKW: 22},
	"MA": {EnergyPerKWh: 0.21, DemandPerKW: 20},
	"NJ": {EnergyPerKWh: 0.15, DemandPerKW: 18},
	"CT": {EnergyPerKWh: 0.20, DemandPerKW: 19},
	"HI": {EnergyPerKWh: 0.38, DemandPerKW: 28},
	"TX": {EnergyPerKWh: 0.10, DemandPerKW: 12},
	"FL": {EnergyPerKWh: 0.11, DemandPerKW: 12},
	"IL": {EnergyPerKWh: 0.12, DemandPerKW: 15},
	"AZ": {EnergyPerKWh: 0.12, DemandPerKW: 18},
	"CO": {EnergyPerKWh: 0.11, DemandPerKW: 16},
	"NV": {EnergyPerKWh: 0.10, DemandPerKW: 15},
	"WA": {EnergyPerKWh: 0.09, DemandPerKW: 10},
	"GA": {EnergyPerKWh: 0.11, DemandPerKW: 14},
	"NC": {EnergyPerKWh: 0.10, DemandPerKW: 13},
	"PA": {EnergyPerKWh: 0.12, DemandPerKW: 14},
	"OH": {EnergyPerKWh: 0.11, DemandPerKW: 13},
	"MI": {EnergyPerKWh: 0.13, DemandPerKW: 15},
}

const nationalSunHours = 4.5

var stateSunHours = map[string]float64{
	"AZ": 6.5, "NV": 6.4, "NM": 6.2, "CA": 5.8, "UT": 5.6, "CO": 5.5, "HI": 5.5,
	"TX": 5.3, "FL": 5.3, "GA": 4.9, "NC": 4.7, "IL": 4.3, "MA": 4.2, "NJ": 4.2,
	"PA": 4.1, "NY": 4.0, "OH": 4.0, "OR": 4.0, "MI": 3.9, "WA": 3.7,
}

var regionSunHours = map[string]float64{
	"southwest": 6.0, "mountain": 5.4, "southeast": 4.9, "midwest": 4.2, "northeast": 4.1, "northwest": 3.9,
}

// kg CO2 per kWh.
const nationalEmissionFactor = 0.386

var emissionFactors = map[string]float64{
	"CA": 0.20, "NY": 0.23, "WA": 0.09, "OR": 0.15, "TX": 0.40, "FL": 0.39,
	"IL": 0.29, "OH": 0.54, "PA": 0.33, "GA": 0.38, "AZ": 0.35, "CO": 0.53,
	"MA": 0.34, "NJ": 0.24, "HI": 0.64, "WV": 0.86,
}
