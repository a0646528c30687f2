package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidTOS      ErrCode = "INVALID_TOS"
	ErrNoRequirements  ErrCode = "NO_REQUIREMENTS"
	ErrAmbiguousSource ErrCode = "AMBIGUOUS_TOS_SOURCE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Assembly ──────────────────────────────────────────────────────
	ErrContractViolation ErrCode = "TOS_CONTRACT_VIOLATION"
	ErrArtifactPersist   ErrCode = "ARTIFACT_PERSIST_FAILED"
	ErrAssemblyCancelled ErrCode = "ASSEMBLY_CANCELLED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal           ErrCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidTOS:
		return "Tabel spesifikasi (TOS) tidak valid."
	case ErrNoRequirements:
		return "Tidak ada kebutuhan soal yang valid untuk dirakit."
	case ErrAmbiguousSource:
		return "Kirim salah satu dari tos atau requirements, tidak keduanya."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Assembly ──────────────────────────────────────────────────────
	case ErrContractViolation:
		return "Jumlah soal tidak dapat dipenuhi sesuai TOS."
	case ErrArtifactPersist:
		return "Gagal menyimpan tes yang telah dirakit."
	case ErrAssemblyCancelled:
		return "Perakitan tes dibatalkan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	case ErrServiceUnavailable:
		return "Layanan sedang tidak tersedia."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
