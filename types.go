package pdfunlock

// Raw error codes reported by the codec's last-error query. They are
// translated at the boundary and never returned to callers.
type codecError uint32

const (
	codeNone     codecError = 0 // no error recorded
	codeUnknown  codecError = 1
	codeFile     codecError = 2 // unrecoverable file error
	codeFormat   codecError = 3 // not a PDF or corrupt
	codePassword codecError = 4 // password missing or wrong
	codeSecurity codecError = 5 // unsupported security scheme
	codePage     codecError = 6 // page-level failure
)

// Guest exports the codec module must provide. A missing export fails
// instantiation with ErrCodecUnavailable.
const (
	exportMalloc           = "malloc"
	exportFree             = "free"
	exportInitLibrary      = "FPDF_InitLibrary"
	exportLoadMemDocument  = "FPDF_LoadMemDocument"
	exportGetLastError     = "FPDF_GetLastError"
	exportGetPageCount     = "FPDF_GetPageCount"
	exportGetSecurityRev   = "FPDF_GetSecurityHandlerRevision"
	exportSaveWithoutSec = "FPDF_SaveWithoutSecurity"
	exportCloseDocument  = "FPDF_CloseDocument"
)

// Host import the module links against for streaming saves.
const (
	hostModuleName         = "env"
	hostWriteBlockFunction = "pdfunlock_write_block"
)

// Write-sink record layout in codec memory: a version word the codec
// checks, then a word-sized slot carrying the host-assigned sink id.
const (
	sinkRecordVersion uint32 = 1
	sinkRecordSize    uint32 = 8
)

// ModuleEncoding identifies how a codec module binary is stored.
type ModuleEncoding uint8

const (
	// EncodingAuto sniffs Zstandard and LZ4 frame magic, treats a ".br"
	// name suffix as Brotli, and otherwise expects a raw module.
	EncodingAuto ModuleEncoding = iota
	EncodingNone
	EncodingZstd
	EncodingLZ4
	EncodingBrotli
)

// wasmMagic begins every core WebAssembly module.
var wasmMagic = [4]byte{0x00, 'a', 's', 'm'}

const defaultMaxModuleSize uint64 = 256 << 20 // decompressed cap
