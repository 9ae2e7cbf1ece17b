package pubg

// Weapon categories. The first nine plus Other are player-facing and
// feed career weapon stats; Special, Vehicle and Environment only
// describe deaths.
const (
	CategoryAR          = "AR"
	CategoryDMR         = "DMR"
	CategorySR          = "SR"
	CategorySMG         = "SMG"
	CategoryShotgun     = "Shotgun"
	CategoryLMG         = "LMG"
	CategoryPistol      = "Pistol"
	CategoryMelee       = "Melee"
	CategoryThrowable   = "Throwable"
	CategorySpecial     = "Special"
	CategoryVehicle     = "Vehicle"
	CategoryEnvironment = "Environment"
	CategoryOther       = "Other"
)

// IsPlayerFacingCategory reports whether a category appears in per-weapon
// career stats.
func IsPlayerFacingCategory(category string) bool {
	switch category {
	case CategoryAR, CategoryDMR, CategorySR, CategorySMG, CategoryShotgun,
		CategoryLMG, CategoryPistol, CategoryMelee, CategoryThrowable, CategoryOther:
		return true
	}
	return false
}

// weaponCategories maps telemetry damageCauserName values to categories.
var weaponCategories = map[string]string{
	// Assault rifles
	"WeapACE32_C":      CategoryAR,
	"WeapAK47_C":       CategoryAR,
	"WeapAUG_C":        CategoryAR,
	"WeapBerylM762_C":  CategoryAR,
	"WeapFamasG2_C":    CategoryAR,
	"WeapG36C_C":       CategoryAR,
	"WeapGroza_C":      CategoryAR,
	"WeapHK416_C":      CategoryAR,
	"WeapK2_C":         CategoryAR,
	"WeapM16A4_C":      CategoryAR,
	"WeapMk47Mutant_C": CategoryAR,
	"WeapQBZ95_C":      CategoryAR,
	"WeapSCAR-L_C":     CategoryAR,

	// Designated marksman rifles
	"WeapDragunov_C": CategoryDMR,
	"WeapMini14_C":   CategoryDMR,
	"WeapMk12_C":     CategoryDMR,
	"WeapMk14_C":     CategoryDMR,
	"WeapQBU88_C":    CategoryDMR,
	"WeapSKS_C":      CategoryDMR,
	"WeapSLR_C":      CategoryDMR,
	"WeapVSS_C":      CategoryDMR,

	// Bolt-action and AMR snipers
	"WeapAWM_C":         CategorySR,
	"WeapKar98k_C":      CategorySR,
	"WeapLynxAMR_C":     CategorySR,
	"WeapM24_C":         CategorySR,
	"WeapMosinNagant_C": CategorySR,
	"WeapWin94_C":       CategorySR,

	// Submachine guns
	"WeapBizonPP19_C": CategorySMG,
	"WeapJS9_C":       CategorySMG,
	"WeapMP5K_C":      CategorySMG,
	"WeapMP9_C":       CategorySMG,
	"WeapP90_C":       CategorySMG,
	"WeapThompson_C":  CategorySMG,
	"WeapUMP_C":       CategorySMG,
	"WeapUZI_C":       CategorySMG,
	"WeapVector_C":    CategorySMG,

	// Shotguns
	"WeapBerreta686_C": CategoryShotgun,
	"WeapDP12_C":       CategoryShotgun,
	"WeapM1014_C":      CategoryShotgun,
	"WeapOriginS12_C":  CategoryShotgun,
	"WeapSaiga12_C":    CategoryShotgun,
	"WeapSawnoff_C":    CategoryShotgun,
	"WeapWinchester_C": CategoryShotgun,

	// Light machine guns
	"WeapDP28_C": CategoryLMG,
	"WeapM249_C": CategoryLMG,
	"WeapMG3_C":  CategoryLMG,

	// Pistols
	"WeapDesertEagle_C": CategoryPistol,
	"WeapG18_C":         CategoryPistol,
	"WeapM1911_C":       CategoryPistol,
	"WeapM9_C":          CategoryPistol,
	"WeapNagantM1895_C": CategoryPistol,
	"WeapRhino_C":       CategoryPistol,
	"WeapSkorpion_C":    CategoryPistol,

	// Melee, including bare fists
	"WeapCowbar_C":     CategoryMelee,
	"WeapMachete_C":    CategoryMelee,
	"WeapPan_C":        CategoryMelee,
	"WeapSickle_C":     CategoryMelee,
	"PlayerMale_A_C":   CategoryMelee,
	"PlayerFemale_A_C": CategoryMelee,

	// Carried oddballs: crossbow and launchers count toward career stats
	// under Other.
	"WeapCrossbow_1_C":       CategoryOther,
	"WeapM79_C":              CategoryOther,
	"WeapPanzerFaust100M1_C": CategoryOther,

	// Thrown and planted explosives
	"ProjGrenade_C":                    CategoryThrowable,
	"ProjMolotov_C":                    CategoryThrowable,
	"ProjMolotov_DamageField_Direct_C": CategoryThrowable,
	"ProjFlashBang_C":                  CategoryThrowable,
	"ProjStickyGrenade_C":              CategoryThrowable,
	"ProjC4_C":                         CategoryThrowable,
	"ProjBlueZoneGrenade_C":            CategoryThrowable,

	// Mounted and emplaced weaponry only ever describes a death.
	"WeapMortar_C":              CategorySpecial,
	"BP_KillTruck_MachineGun_C": CategorySpecial,

	// Vehicles
	"AquaRail_A_01_C":                CategoryVehicle,
	"AquaRail_A_02_C":                CategoryVehicle,
	"AquaRail_A_03_C":                CategoryVehicle,
	"BP_BRDM_C":                      CategoryVehicle,
	"BP_CoupeRB_C":                   CategoryVehicle,
	"BP_Dirtbike_C":                  CategoryVehicle,
	"BP_Food_Truck_C":                CategoryVehicle,
	"BP_KillTruck_C":                 CategoryVehicle,
	"BP_LootTruck_C":                 CategoryVehicle,
	"BP_M_Rony_A_01_C":               CategoryVehicle,
	"BP_Mirado_A_02_C":               CategoryVehicle,
	"BP_Mirado_A_03_Esports_C":       CategoryVehicle,
	"BP_Mirado_Open_03_C":            CategoryVehicle,
	"BP_Mirado_Open_04_C":            CategoryVehicle,
	"BP_Mirado_Open_05_C":            CategoryVehicle,
	"BP_Motorbike_04_C":              CategoryVehicle,
	"BP_Motorbike_04_Desert_C":       CategoryVehicle,
	"BP_Motorbike_04_SideCar_C":      CategoryVehicle,
	"BP_Motorglider_C":               CategoryVehicle,
	"BP_Motorglider_Green_C":         CategoryVehicle,
	"BP_Niva_01_C":                   CategoryVehicle,
	"BP_Niva_02_C":                   CategoryVehicle,
	"BP_Niva_03_C":                   CategoryVehicle,
	"BP_Niva_04_C":                   CategoryVehicle,
	"BP_Niva_Esports_C":              CategoryVehicle,
	"BP_PickupTruck_A_01_C":          CategoryVehicle,
	"BP_PickupTruck_A_02_C":          CategoryVehicle,
	"BP_PickupTruck_A_03_C":          CategoryVehicle,
	"BP_PickupTruck_A_04_C":          CategoryVehicle,
	"BP_PickupTruck_A_05_C":          CategoryVehicle,
	"BP_PickupTruck_A_esports_C":     CategoryVehicle,
	"BP_PickupTruck_B_01_C":          CategoryVehicle,
	"BP_PickupTruck_B_02_C":          CategoryVehicle,
	"BP_PickupTruck_B_03_C":          CategoryVehicle,
	"BP_PickupTruck_B_04_C":          CategoryVehicle,
	"BP_PickupTruck_B_05_C":          CategoryVehicle,
	"BP_PonyCoupe_C":                 CategoryVehicle,
	"BP_Porter_C":                    CategoryVehicle,
	"BP_Scooter_01_A_C":              CategoryVehicle,
	"BP_Scooter_02_A_C":              CategoryVehicle,
	"BP_Scooter_03_A_C":              CategoryVehicle,
	"BP_Scooter_04_A_C":              CategoryVehicle,
	"BP_Snowbike_01_C":               CategoryVehicle,
	"BP_Snowbike_02_C":               CategoryVehicle,
	"BP_Snowmobile_01_C":             CategoryVehicle,
	"BP_Snowmobile_02_C":             CategoryVehicle,
	"BP_Snowmobile_03_C":             CategoryVehicle,
	"BP_TukTukTuk_A_01_C":            CategoryVehicle,
	"BP_TukTukTuk_A_02_C":            CategoryVehicle,
	"BP_TukTukTuk_A_03_C":            CategoryVehicle,
	"BP_Van_A_01_C":                  CategoryVehicle,
	"BP_Van_A_02_C":                  CategoryVehicle,
	"BP_Van_A_03_C":                  CategoryVehicle,
	"Boat_PG117_C":                   CategoryVehicle,
	"Buggy_A_01_C":                   CategoryVehicle,
	"Buggy_A_02_C":                   CategoryVehicle,
	"Buggy_A_03_C":                   CategoryVehicle,
	"Buggy_A_04_C":                   CategoryVehicle,
	"Buggy_A_05_C":                   CategoryVehicle,
	"Buggy_A_06_C":                   CategoryVehicle,
	"Dacia_A_01_v2_C":                CategoryVehicle,
	"Dacia_A_01_v2_snow_C":           CategoryVehicle,
	"Dacia_A_02_v2_C":                CategoryVehicle,
	"Dacia_A_03_v2_C":                CategoryVehicle,
	"Dacia_A_03_v2_Esports_C":        CategoryVehicle,
	"Dacia_A_04_v2_C":                CategoryVehicle,
	"PG117_A_01_C":                   CategoryVehicle,
	"Uaz_A_01_C":                     CategoryVehicle,
	"Uaz_Armored_C":                  CategoryVehicle,
	"Uaz_B_01_C":                     CategoryVehicle,
	"Uaz_B_01_esports_C":             CategoryVehicle,
	"Uaz_C_01_C":                     CategoryVehicle,
	"BP_DO_Circle_Train_Merged_C":    CategoryVehicle,
	"BP_DO_Line_Train_Dino_Merged_C": CategoryVehicle,
	"BP_DO_Line_Train_Merged_C":      CategoryVehicle,

	// Environmental killers
	"BattleRoyaleModeController_Def_C": CategoryEnvironment,
	"BlackZoneController_Def_C":        CategoryEnvironment,
	"RedZoneBomb_C":                    CategoryEnvironment,
	"RedZoneBombingField":              CategoryEnvironment,
	"Lava_C":                           CategoryEnvironment,
	"None":                             CategoryEnvironment,
}

// environmentDamageTypes are damage type categories that override the
// causer lookup: the death came from the world, not a weapon.
var environmentDamageTypes = map[string]bool{
	"Damage_BlueZone":            true,
	"Damage_BlueZoneGrenade":     false, // a player threw it
	"Damage_Drown":               true,
	"Damage_Fall":                true,
	"Damage_RedZone":             true,
	"Damage_Explosion_RedZone":   true,
	"Damage_Explosion_BlackZone": true,
}

// WeaponCategory resolves a damageCauserName to one of the thirteen
// categories. Unknown causers fall into Other.
func WeaponCategory(damageCauserName string) string {
	if category, ok := weaponCategories[damageCauserName]; ok {
		return category
	}
	return CategoryOther
}

// CategorizeDamage resolves a damage event using both the causer name
// and the damage type. Damage types that identify world damage or
// vehicle impacts win over the causer table, which keeps categories
// right when a new vehicle id shows up before the table learns it.
func CategorizeDamage(damageCauserName, damageTypeCategory string) string {
	if environmentDamageTypes[damageTypeCategory] {
		return CategoryEnvironment
	}
	switch damageTypeCategory {
	case "Damage_VehicleHit", "Damage_VehicleCrashHit":
		return CategoryVehicle
	case "Damage_Explosion_Grenade", "Damage_Explosion_C4",
		"Damage_Explosion_StickyBomb", "Damage_Molotov", "Damage_ThrowObject":
		return CategoryThrowable
	case "Damage_Punch":
		return CategoryMelee
	}
	return WeaponCategory(damageCauserName)
}
