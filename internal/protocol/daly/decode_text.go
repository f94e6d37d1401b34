package daly

func decodeText(fields []TextField, b []byte) Reading {
	r := make(Reading, len(fields))
	for _, f := range fields {
		r[f.Name] = Text(textAt(b, f.Offset, f.Width))
	}
	return r
}

// decodeVersions 软件/硬件版本，各 32 字节
func decodeVersions(p *Profile, b []byte, _ decodeOptions) Reading {
	return decodeText(p.Versions, b)
}

// decodePassword 6 字节密码
func decodePassword(p *Profile, b []byte, _ decodeOptions) Reading {
	return decodeText(p.Password, b)
}
