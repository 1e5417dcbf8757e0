package industry

// CatalogVersion identifies the built-in industry rules.
const CatalogVersion = "industry-rules/2025.11"

// Default returns the built-in registry. It panics if the built-in data is invalid.
func Default() *Registry {
	r, err := NewRegistry(CatalogVersion, builtin()...)
	if err != nil {
		panic("industry: invalid built-in catalog: " + err.Error())
	}
	return r
}

var (
	areaFields = []string{"squareFootage", "squareFeet", "sqFt", "buildingSqFt", "facilitySize"}

	standardFinance = FinancialDefaults{
		DemandCaptureRatio: 0.75,
		CyclesPerYear:      250,
		ArbitrageSpread:    0.30,
		DiscountRate:       0.08,
		RateEscalation:     0.025,
	}
	criticalFinance = FinancialDefaults{
		DemandCaptureRatio: 0.65,
		CyclesPerYear:      200,
		ArbitrageSpread:    0.25,
		DiscountRate:       0.07,
		RateEscalation:     0.025,
	}
)

func builtin() []Config {
	return []Config{
		{
			Slug:           "hotel",
			Name:           "Hotel & Lodging",
			Aliases:        []string{"hospitality", "lodging", "motel", "resort", "hotels"},
			DefaultSubtype: "full-service",
			Subtypes: map[string]SubtypeConfig{
				"limited-service": {Name: "Limited service", BatteryRatio: 0.35, CriticalLoadFraction: 0.30, DurationHours: 4, GeneratorOversize: 1.25},
				"full-service":    {Name: "Full service", BatteryRatio: 0.40, CriticalLoadFraction: 0.35, DurationHours: 4, GeneratorOversize: 1.25},
				"resort":          {Name: "Resort", BatteryRatio: 0.45, CriticalLoadFraction: 0.40, DurationHours: 4, GeneratorOversize: 1.25},
				"casino-resort":   {Name: "Casino resort", BatteryRatio: 0.45, CriticalLoadFraction: 0.60, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
			},
			Power: PerUnit{
				UnitName:      "room",
				CountFields:   []string{"roomCount", "rooms", "numberOfRooms", "numRooms", "hotelRooms"},
				WattsPerUnit:  2500,
				CategoryField: "hotelCategory",
				CategoryWatts: map[string]float64{
					"budget":         1500,
					"economy":        1500,
					"midscale":       2500,
					"upper-midscale": 3000,
					"upscale":        3500,
					"luxury":         5000,
				},
				RangeFields: []string{"peakDemandRange", "estimatedLoadRange"},
			},
			Modifiers: []PowerModifier{
				{Name: "pool", Trigger: "hasPool", Multiplier: 1.05},
				{Name: "restaurant", Trigger: "hasRestaurant", Multiplier: 1.10},
				{Name: "spa", Trigger: "hasSpa", Multiplier: 1.05},
				{Name: "laundry", Trigger: "hasLaundry", Multiplier: 1.08},
				{Name: "conference center", Trigger: "hasConferenceCenter", Multiplier: 1.10},
			},
			Battery:         BatteryDefaults{MinKW: 50, MaxKW: 5000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "hospital",
			Name:           "Hospital & Healthcare",
			Aliases:        []string{"healthcare", "medical", "medical-center", "hospitals"},
			DefaultSubtype: "community",
			Subtypes: map[string]SubtypeConfig{
				"clinic":    {Name: "Outpatient clinic", BatteryRatio: 0.40, CriticalLoadFraction: 0.50, DurationHours: 2, GeneratorOversize: 1.25},
				"community": {Name: "Community hospital", BatteryRatio: 0.50, CriticalLoadFraction: 0.70, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
				"regional":  {Name: "Regional medical center", BatteryRatio: 0.50, CriticalLoadFraction: 0.75, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
				"teaching":  {Name: "Teaching hospital", BatteryRatio: 0.50, CriticalLoadFraction: 0.80, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
			},
			Power: PerUnit{
				UnitName:     "bed",
				CountFields:  []string{"bedCount", "beds", "numberOfBeds", "licensedBeds"},
				WattsPerUnit: 8000,
				RangeFields:  []string{"peakDemandRange", "estimatedLoadRange"},
			},
			Modifiers: []PowerModifier{
				{Name: "intensive care", Trigger: "hasICU", Multiplier: 1.15},
				{Name: "operating rooms", Trigger: "operatingRooms", Multiplier: 1.10},
				{Name: "diagnostic imaging", Trigger: "hasImaging", Multiplier: 1.15},
				{Name: "laboratory", Trigger: "hasLab", Multiplier: 1.05},
			},
			Battery:         BatteryDefaults{MinKW: 100, MaxKW: 20000},
			Financial:       criticalFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorAlways},
		},
		{
			Slug:           "data-center",
			Name:           "Data Center",
			Aliases:        []string{"datacenter", "data-centre", "colocation", "colo"},
			DefaultSubtype: "enterprise",
			Subtypes: map[string]SubtypeConfig{
				"edge":       {Name: "Edge", BatteryRatio: 0.50, CriticalLoadFraction: 1.0, DurationHours: 1, GeneratorOversize: 1.25},
				"enterprise": {Name: "Enterprise", BatteryRatio: 0.50, CriticalLoadFraction: 1.0, DurationHours: 2, GeneratorRequired: true, GeneratorOversize: 1.25},
				"colocation": {Name: "Colocation", BatteryRatio: 0.60, CriticalLoadFraction: 1.0, DurationHours: 2, GeneratorRequired: true, GeneratorOversize: 1.30},
				"hyperscale": {Name: "Hyperscale", BatteryRatio: 0.40, CriticalLoadFraction: 1.0, DurationHours: 2, GeneratorRequired: true, GeneratorOversize: 1.30},
			},
			Power: PerUnit{
				UnitName:     "rack",
				CountFields:  []string{"rackCount", "racks", "numberOfRacks"},
				WattsPerUnit: 8000,
				RangeFields:  []string{"itLoadRange", "itLoad", "capacityRange"},
			},
			Modifiers: []PowerModifier{
				{Name: "power usage effectiveness", Trigger: "pue", Multiplier: 1.5, Kind: ModifierEfficiencyRatio},
				{Name: "liquid cooling", Trigger: "liquidCooling", Multiplier: 0.95},
			},
			Battery:         BatteryDefaults{MinKW: 100, MaxKW: 100000},
			Financial:       criticalFinance,
			Recommendations: Recommendations{SolarRecommended: false, Generator: GeneratorAlways},
		},
		{
			Slug:           "office",
			Name:           "Office Building",
			Aliases:        []string{"commercial-office", "office-building", "offices"},
			DefaultSubtype: "midrise",
			Subtypes: map[string]SubtypeConfig{
				"small":    {Name: "Small office", BatteryRatio: 0.35, CriticalLoadFraction: 0.25, DurationHours: 2, GeneratorOversize: 1.25},
				"midrise":  {Name: "Mid-rise", BatteryRatio: 0.35, CriticalLoadFraction: 0.30, DurationHours: 4, GeneratorOversize: 1.25},
				"highrise": {Name: "High-rise", BatteryRatio: 0.30, CriticalLoadFraction: 0.35, DurationHours: 4, GeneratorOversize: 1.25},
			},
			Power: PerSqft{AreaFields: areaFields, WattsPerSqft: 6},
			Modifiers: []PowerModifier{
				{Name: "server room", Trigger: "hasServerRoom", Multiplier: 1.10},
				{Name: "all-electric HVAC", Trigger: "allElectric", Multiplier: 1.15},
			},
			Battery:         BatteryDefaults{MinKW: 25, MaxKW: 5000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "retail",
			Name:           "Retail",
			Aliases:        []string{"store", "shopping-center", "grocery", "supermarket"},
			DefaultSubtype: "big-box",
			Subtypes: map[string]SubtypeConfig{
				"strip-mall": {Name: "Strip mall", BatteryRatio: 0.35, CriticalLoadFraction: 0.25, DurationHours: 2, GeneratorOversize: 1.25},
				"big-box":    {Name: "Big box", BatteryRatio: 0.40, CriticalLoadFraction: 0.30, DurationHours: 4, GeneratorOversize: 1.25},
				"grocery":    {Name: "Grocery", BatteryRatio: 0.40, CriticalLoadFraction: 0.50, DurationHours: 4, GeneratorOversize: 1.25},
			},
			Power: PerSqft{AreaFields: areaFields, WattsPerSqft: 8},
			Modifiers: []PowerModifier{
				{Name: "refrigeration", Trigger: "hasRefrigeration", Multiplier: 1.25},
				{Name: "extended hours", Trigger: "extendedHours", Multiplier: 1.05},
			},
			Battery:         BatteryDefaults{MinKW: 25, MaxKW: 5000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "warehouse",
			Name:           "Warehouse & Logistics",
			Aliases:        []string{"logistics", "distribution-center", "fulfillment", "fulfillment-center"},
			DefaultSubtype: "dry",
			Subtypes: map[string]SubtypeConfig{
				"dry":         {Name: "Dry goods", BatteryRatio: 0.40, CriticalLoadFraction: 0.25, DurationHours: 4, GeneratorOversize: 1.25},
				"cold-chain":  {Name: "Cold chain", BatteryRatio: 0.45, CriticalLoadFraction: 0.60, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
				"fulfillment": {Name: "Fulfillment", BatteryRatio: 0.40, CriticalLoadFraction: 0.35, DurationHours: 4, GeneratorOversize: 1.25},
			},
			Power: PerSqft{AreaFields: areaFields, WattsPerSqft: 2.5},
			Modifiers: []PowerModifier{
				{Name: "cold storage", Trigger: "hasColdStorage", Multiplier: 1.60},
				{Name: "automation", Trigger: "hasAutomation", Multiplier: 1.30},
				{Name: "electric forklifts", Trigger: "electricForklifts", Multiplier: 1.10},
			},
			Battery:         BatteryDefaults{MinKW: 50, MaxKW: 10000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "manufacturing",
			Name:           "Manufacturing",
			Aliases:        []string{"industrial", "factory", "plant"},
			DefaultSubtype: "light",
			Subtypes: map[string]SubtypeConfig{
				"light":   {Name: "Light assembly", BatteryRatio: 0.40, CriticalLoadFraction: 0.40, DurationHours: 4, GeneratorOversize: 1.25},
				"heavy":   {Name: "Heavy industry", BatteryRatio: 0.45, CriticalLoadFraction: 0.60, DurationHours: 4, GeneratorOversize: 1.25},
				"process": {Name: "Continuous process", BatteryRatio: 0.50, CriticalLoadFraction: 0.75, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.30},
			},
			Power: PerSqft{AreaFields: areaFields, WattsPerSqft: 15},
			Modifiers: []PowerModifier{
				{Name: "heavy machinery", Trigger: "heavyMachinery", Multiplier: 1.25},
				{Name: "process heating", Trigger: "processHeating", Multiplier: 1.20},
				{Name: "compressed air", Trigger: "compressedAir", Multiplier: 1.10},
				{Name: "multiple shifts", Trigger: "multiShift", Multiplier: 1.10},
			},
			Battery:         BatteryDefaults{MinKW: 100, MaxKW: 50000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "cold-storage",
			Name:           "Cold Storage",
			Aliases:        []string{"refrigerated-warehouse", "freezer-warehouse"},
			DefaultSubtype: "chilled",
			Subtypes: map[string]SubtypeConfig{
				"chilled": {Name: "Chilled", BatteryRatio: 0.45, CriticalLoadFraction: 0.60, DurationHours: 4, GeneratorOversize: 1.25},
				"frozen":  {Name: "Frozen", BatteryRatio: 0.50, CriticalLoadFraction: 0.80, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
			},
			Power: PerSqft{AreaFields: areaFields, WattsPerSqft: 12},
			Modifiers: []PowerModifier{
				{Name: "blast freezing", Trigger: "blastFreezing", Multiplier: 1.20},
			},
			Battery:         BatteryDefaults{MinKW: 50, MaxKW: 10000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorAlways},
		},
		{
			Slug:           "ev-charging",
			Name:           "EV Charging Hub",
			Aliases:        []string{"ev-hub", "charging-station", "ev-charging-hub", "ev-charging-station"},
			DefaultSubtype: "destination",
			Subtypes: map[string]SubtypeConfig{
				"destination":      {Name: "Destination charging", BatteryRatio: 0.50, CriticalLoadFraction: 0.10, DurationHours: 2, GeneratorOversize: 1.25},
				"fleet-depot":      {Name: "Fleet depot", BatteryRatio: 0.60, CriticalLoadFraction: 0.30, DurationHours: 2, GeneratorOversize: 1.25},
				"highway-corridor": {Name: "Highway corridor", BatteryRatio: 0.70, CriticalLoadFraction: 0.20, DurationHours: 2, GeneratorOversize: 1.25},
			},
			Power: ChargerSum{Classes: ChargerClasses},
			Modifiers: []PowerModifier{
				{Name: "convenience store", Trigger: "hasConvenienceStore", Multiplier: 1.05},
			},
			Battery:         BatteryDefaults{MinKW: 50, MaxKW: 20000},
			Financial:       FinancialDefaults{DemandCaptureRatio: 0.85, CyclesPerYear: 300, ArbitrageSpread: 0.30, DiscountRate: 0.08, RateEscalation: 0.025},
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorNever},
		},
		{
			Slug:           "car-wash",
			Name:           "Car Wash",
			Aliases:        []string{"carwash"},
			DefaultSubtype: "express-tunnel",
			Subtypes: map[string]SubtypeConfig{
				"self-serve":     {Name: "Self serve", BatteryRatio: 0.40, CriticalLoadFraction: 0.20, DurationHours: 2, GeneratorOversize: 1.25},
				"in-bay":         {Name: "In-bay automatic", BatteryRatio: 0.45, CriticalLoadFraction: 0.25, DurationHours: 2, GeneratorOversize: 1.25},
				"express-tunnel": {Name: "Express tunnel", BatteryRatio: 0.50, CriticalLoadFraction: 0.25, DurationHours: 2, GeneratorOversize: 1.25},
			},
			Power: PerUnit{
				UnitName:     "bay",
				CountFields:  []string{"bayCount", "washBays", "bays", "tunnelCount"},
				WattsPerUnit: 45000,
				RangeFields:  []string{"peakDemandRange"},
			},
			Modifiers: []PowerModifier{
				{Name: "vacuum stations", Trigger: "hasVacuums", Multiplier: 1.10},
				{Name: "heated water", Trigger: "heatedWater", Multiplier: 1.15},
			},
			Battery:         BatteryDefaults{MinKW: 25, MaxKW: 2000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorNever},
		},
		{
			Slug:           "apartment",
			Name:           "Multifamily Residential",
			Aliases:        []string{"multifamily", "apartments", "residential-complex"},
			DefaultSubtype: "midrise",
			Subtypes: map[string]SubtypeConfig{
				"garden":   {Name: "Garden style", BatteryRatio: 0.30, CriticalLoadFraction: 0.20, DurationHours: 4, GeneratorOversize: 1.25},
				"midrise":  {Name: "Mid-rise", BatteryRatio: 0.35, CriticalLoadFraction: 0.25, DurationHours: 4, GeneratorOversize: 1.25},
				"highrise": {Name: "High-rise", BatteryRatio: 0.35, CriticalLoadFraction: 0.35, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
			},
			Power: PerUnit{
				UnitName:     "unit",
				CountFields:  []string{"unitCount", "units", "apartmentUnits", "numberOfUnits"},
				WattsPerUnit: 1800,
				RangeFields:  []string{"peakDemandRange"},
			},
			Modifiers: []PowerModifier{
				{Name: "electric heating", Trigger: "electricHeating", Multiplier: 1.30},
				{Name: "amenity center", Trigger: "hasAmenityCenter", Multiplier: 1.05},
			},
			Battery:         BatteryDefaults{MinKW: 25, MaxKW: 5000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "college",
			Name:           "College & University",
			Aliases:        []string{"university", "campus", "higher-education"},
			DefaultSubtype: "university",
			Subtypes: map[string]SubtypeConfig{
				"community-college": {Name: "Community college", BatteryRatio: 0.35, CriticalLoadFraction: 0.25, DurationHours: 4, GeneratorOversize: 1.25},
				"university":        {Name: "University", BatteryRatio: 0.40, CriticalLoadFraction: 0.35, DurationHours: 4, GeneratorOversize: 1.25},
				"research":          {Name: "Research university", BatteryRatio: 0.45, CriticalLoadFraction: 0.50, DurationHours: 4, GeneratorRequired: true, GeneratorOversize: 1.25},
			},
			Power: PerUnit{
				UnitName:     "student",
				CountFields:  []string{"studentCount", "enrollment", "students"},
				WattsPerUnit: 600,
				RangeFields:  []string{"peakDemandRange"},
			},
			Modifiers: []PowerModifier{
				{Name: "research labs", Trigger: "hasResearchLabs", Multiplier: 1.20},
				{Name: "residence halls", Trigger: "hasDorms", Multiplier: 1.10},
				{Name: "stadium", Trigger: "hasStadium", Multiplier: 1.05},
			},
			Battery:         BatteryDefaults{MinKW: 100, MaxKW: 20000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "indoor-farm",
			Name:           "Indoor Agriculture",
			Aliases:        []string{"vertical-farm", "agriculture", "greenhouse"},
			DefaultSubtype: "vertical",
			Subtypes: map[string]SubtypeConfig{
				"greenhouse": {Name: "Greenhouse", BatteryRatio: 0.40, CriticalLoadFraction: 0.40, DurationHours: 4, GeneratorOversize: 1.25},
				"vertical":   {Name: "Vertical farm", BatteryRatio: 0.45, CriticalLoadFraction: 0.60, DurationHours: 4, GeneratorOversize: 1.25},
			},
			Power: PerSqft{AreaFields: append([]string{"growingSqFt", "canopySqFt"}, areaFields...), WattsPerSqft: 40},
			Modifiers: []PowerModifier{
				{Name: "dehumidification", Trigger: "hvacDehumidification", Multiplier: 1.15},
			},
			Battery:         BatteryDefaults{MinKW: 50, MaxKW: 10000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "gas-station",
			Name:           "Fuel Station & Truck Stop",
			Aliases:        []string{"fuel-station", "truck-stop", "travel-center"},
			DefaultSubtype: "station",
			Subtypes: map[string]SubtypeConfig{
				"station":    {Name: "Fuel station", BatteryRatio: 0.50, CriticalLoadFraction: 0.50, DurationHours: 2, GeneratorOversize: 1.25},
				"truck-stop": {Name: "Truck stop", BatteryRatio: 0.50, CriticalLoadFraction: 0.50, DurationHours: 4, GeneratorOversize: 1.25},
			},
			Power: Fixed{BaselineKW: 150},
			Modifiers: []PowerModifier{
				{Name: "food service", Trigger: "hasFoodService", Multiplier: 1.20},
				{Name: "car wash", Trigger: "hasCarWash", Multiplier: 1.30},
			},
			Battery:         BatteryDefaults{MinKW: 25, MaxKW: 2000},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
		{
			Slug:           "custom",
			Name:           "Custom Facility",
			Aliases:        []string{"other", "microgrid", "generic"},
			DefaultSubtype: "default",
			Subtypes: map[string]SubtypeConfig{
				"default": {Name: "Default", BatteryRatio: 0.40, CriticalLoadFraction: 0.50, DurationHours: 4, GeneratorOversize: 1.25},
			},
			Power:           Fixed{},
			Battery:         BatteryDefaults{},
			Financial:       standardFinance,
			Recommendations: Recommendations{SolarRecommended: true, Generator: GeneratorIfUnreliableGrid},
		},
	}
}
