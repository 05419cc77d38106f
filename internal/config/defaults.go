package config

const (
	defaultWorkDir   = "~/.local/share/pmt/work"
	defaultOutputDir = "~/.local/share/pmt/output"
	defaultDataDir   = "~/.local/share/pmt"
	defaultLogDir    = "~/.local/share/pmt/logs"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultSequenceID         = "SQ0010"
	defaultShotIDTemplate     = "{count:03}0"
	defaultInitialNumber      = 1
	defaultShotLength         = 30
	defaultMultipleCharacters = "keep_first"
	defaultAmbiguity          = "warn"
	defaultCharacterNameWords = 6
	defaultScreenplayRules    = "default"

	defaultMasterSequence   = "S1E1"
	defaultEpisode          = "S01E01"
	defaultSequenceDir      = "/Game/shots/"
	defaultShotSequencePath = "/Game/shots/{shot}/"
	defaultShotSequenceName = "S1E1_{shot}"
	defaultSubsequencePath  = "/Game/shots/{shot}/{department}"
	defaultSubsequenceName  = "S1E1_{shot}_{department}"
	defaultFrameRate        = 24
	defaultPreRollFrames    = 24
	defaultAssetPath        = "/Game/assets/{asset_type}/{asset_name}/{department}"
	defaultPlaceholderAsset = "/PMT/Assets/Character.Character"
	defaultCameraClass      = "CineCameraActor"
	defaultConflictPolicy   = "fail"

	defaultAssetLocation    = "assets/{asset_type}/{asset}/{step}"
	defaultSequenceLocation = "sequences/{sequence}"
	defaultShotLocation     = "sequences/{sequence}/{shot}/{step}"

	defaultConnectorMode      = "direct"
	defaultTimeoutSeconds     = 1800
	defaultLockTimeoutSeconds = 30
)

var (
	defaultSubsceneTracks = []string{"anim", "lighting", "environment", "fx"}
	defaultShotSteps      = []string{"layout", "anim", "lighting"}
	defaultHostArgs       = []string{
		"bridge",
		"--writer", "{writer}",
		"--project-file", "{project_file}",
		"--result-file", "{result_file}",
		"--target", "{project_dir}",
	}
)

func defaultDepartmentTasks() map[string][]string {
	return map[string][]string{
		"rig":     {},
		"model":   {},
		"surface": {"texture", "material"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Screenplay: Screenplay{
			SequenceID:         defaultSequenceID,
			ShotIDTemplate:     defaultShotIDTemplate,
			InitialNumber:      defaultInitialNumber,
			ShotLength:         defaultShotLength,
			MultipleCharacters: defaultMultipleCharacters,
			Ambiguity:          defaultAmbiguity,
			CharacterNameWords: defaultCharacterNameWords,
			Rules:              defaultScreenplayRules,
		},
		Engine: Engine{
			MasterSequence:   defaultMasterSequence,
			Episode:          defaultEpisode,
			SequenceDir:      defaultSequenceDir,
			ShotSequencePath: defaultShotSequencePath,
			ShotSequenceName: defaultShotSequenceName,
			SubsceneTracks:   append([]string(nil), defaultSubsceneTracks...),
			SubsequencePath:  defaultSubsequencePath,
			SubsequenceName:  defaultSubsequenceName,
			ShotLength:       defaultShotLength,
			FrameRate:        defaultFrameRate,
			PreRollFrames:    defaultPreRollFrames,
			AssetPath:        defaultAssetPath,
			DepartmentTasks:  defaultDepartmentTasks(),
			PlaceholderAsset: defaultPlaceholderAsset,
			CameraClass:      defaultCameraClass,
			ConflictPolicy:   defaultConflictPolicy,
		},
		Tracking: Tracking{
			ConflictPolicy:   defaultConflictPolicy,
			AssetLocation:    defaultAssetLocation,
			SequenceLocation: defaultSequenceLocation,
			ShotLocation:     defaultShotLocation,
			DepartmentTasks:  defaultDepartmentTasks(),
			ShotSteps:        append([]string(nil), defaultShotSteps...),
		},
		Connector: Connector{
			Mode:               defaultConnectorMode,
			HostArgs:           append([]string(nil), defaultHostArgs...),
			TimeoutSeconds:     defaultTimeoutSeconds,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
	}
}
